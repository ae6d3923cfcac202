package notify

import (
	"context"
	"fmt"
	"time"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"
)

// Envelope is one outbound message. It is consumed on a successful send and
// re-queued on failure when marked important.
type Envelope struct {
	Channel   domain.ChannelClass
	Body      string
	Important bool
}

// Config holds the dispatcher's quota parameters.
type Config struct {
	// Channels maps a message class to its transport channel identifier.
	Channels map[domain.ChannelClass]string

	// DailyLimit caps how many messages may be physically sent per day.
	DailyLimit int

	// MinInterval is the minimum spacing between successful sends.
	MinInterval time.Duration
}

// Dispatcher is the quota- and interval-limited gate in front of the
// notification transport. Messages failing admission or the transport are
// dropped unless marked important, in which case they queue for FlushPending.
//
// The dispatcher is owned by the scheduler loop and is not safe for
// concurrent use.
type Dispatcher struct {
	cfg       Config
	transport ports.NotificationTransport
	logger    ports.Logger

	lastSentAt  time.Time
	sentToday   int
	windowStart time.Time
	pending     []Envelope

	now func() time.Time // injectable for tests
}

// New creates a dispatcher over the given transport.
func New(cfg Config, transport ports.NotificationTransport, logger ports.Logger) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("notification transport is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for dispatcher")
	}
	if cfg.DailyLimit <= 0 {
		return nil, fmt.Errorf("daily message limit must be positive")
	}
	if cfg.MinInterval < 0 {
		return nil, fmt.Errorf("minimum message interval cannot be negative")
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("at least one notification channel is required")
	}
	d := &Dispatcher{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
	d.windowStart = d.now()
	return d, nil
}

// Send attempts to deliver one message. It returns true only when the message
// was physically sent. A false return means the message was dropped, or
// queued for retry if important; it is never an abnormal condition for the
// caller.
func (d *Dispatcher) Send(ctx context.Context, channel domain.ChannelClass, body string, important bool) bool {
	return d.send(ctx, Envelope{Channel: channel, Body: body, Important: important})
}

// FlushPending attempts to resend every queued important message once. The
// queue is cleared up front so a message failing again is re-queued rather
// than duplicated. Returns the number of messages sent.
func (d *Dispatcher) FlushPending(ctx context.Context) int {
	if len(d.pending) == 0 {
		return 0
	}
	queued := d.pending
	d.pending = nil

	sent := 0
	for _, env := range queued {
		if d.send(ctx, env) {
			sent++
		}
	}
	if sent > 0 || len(d.pending) > 0 {
		d.logger.Info(ctx, "Flushed pending notifications", map[string]interface{}{
			"sent": sent, "requeued": len(d.pending),
		})
	}
	return sent
}

// PendingCount returns how many important messages await retry.
func (d *Dispatcher) PendingCount() int {
	return len(d.pending)
}

func (d *Dispatcher) send(ctx context.Context, env Envelope) bool {
	now := d.now()

	// Daily window rollover
	if now.Sub(d.windowStart) > 24*time.Hour {
		d.sentToday = 0
		d.windowStart = now
	}

	// Admission: daily quota
	if d.sentToday >= d.cfg.DailyLimit {
		d.reject(ctx, env, "daily limit reached")
		return false
	}

	// Admission: minimum spacing since the last successful send
	if !d.lastSentAt.IsZero() && now.Sub(d.lastSentAt) < d.cfg.MinInterval {
		d.reject(ctx, env, "below minimum interval")
		return false
	}

	channelID, ok := d.cfg.Channels[env.Channel]
	if !ok {
		d.logger.Warn(ctx, "No channel configured for message class, dropping", map[string]interface{}{
			"class": string(env.Channel),
		})
		return false
	}

	res, err := d.transport.Post(ctx, channelID, env.Body)
	if err != nil || !res.OK {
		reason := "transport failure"
		if res.RateLimited {
			reason = "transport rate limited"
		}
		d.reject(ctx, env, reason)
		return false
	}

	// Quota bookkeeping happens exactly once per physically sent message.
	d.sentToday++
	d.lastSentAt = d.now()
	return true
}

func (d *Dispatcher) reject(ctx context.Context, env Envelope, reason string) {
	if env.Important {
		d.pending = append(d.pending, env)
		d.logger.Debug(ctx, "Important message queued for retry", map[string]interface{}{
			"class": string(env.Channel), "reason": reason,
		})
		return
	}
	d.logger.Debug(ctx, "Message dropped", map[string]interface{}{
		"class": string(env.Channel), "reason": reason,
	})
}
