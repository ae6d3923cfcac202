package notify

import (
	"context"
	"testing"
	"time"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}
func (m *mockLogger) Fatal(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockTransport struct {
	posts       []string
	rateLimited bool
	err         error
}

func (m *mockTransport) Post(ctx context.Context, channel, text string) (ports.PostResult, error) {
	m.posts = append(m.posts, text)
	if m.err != nil {
		return ports.PostResult{}, m.err
	}
	if m.rateLimited {
		return ports.PostResult{RateLimited: true}, nil
	}
	return ports.PostResult{OK: true}, nil
}

func testConfig() Config {
	return Config{
		Channels: map[domain.ChannelClass]string{
			domain.ChannelStatus: "C-status",
			domain.ChannelTrade:  "C-trades",
			domain.ChannelError:  "C-errors",
		},
		DailyLimit:  900,
		MinInterval: 0,
	}
}

func newTestDispatcher(t *testing.T, cfg Config, tr *mockTransport) *Dispatcher {
	t.Helper()
	d, err := New(cfg, tr, &mockLogger{})
	require.NoError(t, err)
	clock := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }
	d.windowStart = clock
	return d
}

func TestNew(t *testing.T) {
	tr := &mockTransport{}
	l := &mockLogger{}

	_, err := New(testConfig(), nil, l)
	assert.Error(t, err)
	_, err = New(testConfig(), tr, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.DailyLimit = 0
	_, err = New(cfg, tr, l)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Channels = nil
	_, err = New(cfg, tr, l)
	assert.Error(t, err)

	d, err := New(testConfig(), tr, l)
	assert.NoError(t, err)
	assert.NotNil(t, d)
}

func TestSendDailyQuota(t *testing.T) {
	tr := &mockTransport{}
	d := newTestDispatcher(t, testConfig(), tr)
	ctx := context.Background()

	// 901 unimportant messages against a limit of 900: exactly 900 go out,
	// the rest drop without queueing.
	sent := 0
	for i := 0; i < 901; i++ {
		if d.Send(ctx, domain.ChannelStatus, "tick", false) {
			sent++
		}
	}
	assert.Equal(t, 900, sent)
	assert.Len(t, tr.posts, 900)
	assert.Equal(t, 0, d.PendingCount())

	// Flushing has nothing to work on
	assert.Equal(t, 0, d.FlushPending(ctx))
	assert.Len(t, tr.posts, 900)
}

func TestSendQuotaQueuesImportant(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLimit = 1
	tr := &mockTransport{}
	d := newTestDispatcher(t, cfg, tr)
	ctx := context.Background()

	assert.True(t, d.Send(ctx, domain.ChannelStatus, "first", false))
	assert.False(t, d.Send(ctx, domain.ChannelError, "alert", true))
	// The quota rejection never reaches the transport
	assert.Len(t, tr.posts, 1)
	assert.Equal(t, 1, d.PendingCount())
}

func TestSendMinInterval(t *testing.T) {
	cfg := testConfig()
	cfg.MinInterval = 2 * time.Second
	tr := &mockTransport{}
	d, err := New(cfg, tr, &mockLogger{})
	require.NoError(t, err)
	clock := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }
	d.windowStart = clock
	ctx := context.Background()

	assert.True(t, d.Send(ctx, domain.ChannelStatus, "first", false))
	// Too soon: unimportant drops, important queues
	assert.False(t, d.Send(ctx, domain.ChannelStatus, "too soon", false))
	assert.False(t, d.Send(ctx, domain.ChannelError, "too soon important", true))
	assert.Len(t, tr.posts, 1)
	assert.Equal(t, 1, d.PendingCount())

	clock = clock.Add(2 * time.Second)
	assert.True(t, d.Send(ctx, domain.ChannelStatus, "spaced", false))
	assert.Len(t, tr.posts, 2)
}

func TestSendRateLimitedQueuesImportant(t *testing.T) {
	tr := &mockTransport{rateLimited: true}
	d := newTestDispatcher(t, testConfig(), tr)
	ctx := context.Background()

	assert.False(t, d.Send(ctx, domain.ChannelError, "alert", true))
	assert.Equal(t, 1, d.PendingCount())
	require.Len(t, tr.posts, 1)

	// Transport recovers: one flush attempts exactly one resend
	tr.rateLimited = false
	assert.Equal(t, 1, d.FlushPending(ctx))
	assert.Len(t, tr.posts, 2)
	assert.Equal(t, "alert", tr.posts[1])
	assert.Equal(t, 0, d.PendingCount())
}

func TestFlushPendingRequeuesOnFailure(t *testing.T) {
	tr := &mockTransport{rateLimited: true}
	d := newTestDispatcher(t, testConfig(), tr)
	ctx := context.Background()

	assert.False(t, d.Send(ctx, domain.ChannelError, "alert", true))
	require.Equal(t, 1, d.PendingCount())

	// Still rate limited: one attempt, then back on the queue
	assert.Equal(t, 0, d.FlushPending(ctx))
	assert.Len(t, tr.posts, 2)
	assert.Equal(t, 1, d.PendingCount())
}

func TestDailyWindowRollover(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLimit = 1
	tr := &mockTransport{}
	d, err := New(cfg, tr, &mockLogger{})
	require.NoError(t, err)
	clock := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }
	d.windowStart = clock
	ctx := context.Background()

	assert.True(t, d.Send(ctx, domain.ChannelStatus, "day one", false))
	assert.False(t, d.Send(ctx, domain.ChannelStatus, "over quota", false))

	clock = clock.Add(25 * time.Hour)
	assert.True(t, d.Send(ctx, domain.ChannelStatus, "day two", false))
	assert.Len(t, tr.posts, 2)
}

func TestSendUnknownChannelClass(t *testing.T) {
	tr := &mockTransport{}
	d := newTestDispatcher(t, testConfig(), tr)

	// Report class is not configured in testConfig
	assert.False(t, d.Send(context.Background(), domain.ChannelReport, "report", false))
	assert.Empty(t, tr.posts)
	assert.Equal(t, 0, d.PendingCount())
}
