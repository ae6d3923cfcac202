package retry

import (
	"context"
	"fmt"
	"time"

	"autoCoinBot/internal/ports"
)

// Policy retries a failing boundary call a fixed number of times with a fixed
// delay between attempts. When every attempt fails, the optional OnExhausted
// hook fires (used to push an alert) and the last error is returned to the
// caller unchanged, so sentinel checks with errors.Is still work.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Logger   ports.Logger

	// OnExhausted is called once after the final failed attempt.
	OnExhausted func(ctx context.Context, op string, err error)
}

// New creates a retry policy.
func New(attempts int, delay time.Duration, logger ports.Logger) (*Policy, error) {
	if attempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be positive")
	}
	if delay < 0 {
		return nil, fmt.Errorf("retry delay cannot be negative")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for retry policy")
	}
	return &Policy{Attempts: attempts, Delay: delay, Logger: logger}, nil
}

// Do runs fn until it succeeds or the attempt budget is spent. Context
// cancellation aborts between attempts.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ports.ErrContextCanceled
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		p.Logger.Warn(ctx, "Operation failed", map[string]interface{}{
			"op": op, "attempt": attempt, "maxAttempts": p.Attempts, "error": lastErr.Error(),
		})

		if attempt < p.Attempts && p.Delay > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ports.ErrContextCanceled
			}
		}
	}

	p.Logger.Error(ctx, lastErr, "Operation failed after all retry attempts", map[string]interface{}{
		"op": op, "attempts": p.Attempts,
	})
	if p.OnExhausted != nil {
		p.OnExhausted(ctx, op, lastErr)
	}
	return lastErr
}
