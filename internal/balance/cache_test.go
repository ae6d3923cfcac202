package balance

import (
	"context"
	"errors"
	"testing"
	"time"

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

type mockQuerier struct {
	balances map[string]float64
	errs     map[string]error
	calls    int
}

func (m *mockQuerier) QueryBalance(ctx context.Context, asset string) (float64, error) {
	m.calls++
	if err, ok := m.errs[asset]; ok {
		return 0, err
	}
	return m.balances[asset], nil
}

func TestNew(t *testing.T) {
	q := &mockQuerier{}
	l := &mockLogger{}

	_, err := New(nil, []string{"USDT"}, time.Second, l)
	assert.Error(t, err)
	_, err = New(q, []string{"USDT"}, time.Second, nil)
	assert.Error(t, err)
	_, err = New(q, []string{"USDT"}, 0, l)
	assert.Error(t, err)
	_, err = New(q, nil, time.Second, l)
	assert.Error(t, err)

	c, err := New(q, []string{"USDT"}, time.Second, l)
	assert.NoError(t, err)
	assert.NotNil(t, c)
}

func TestGetBalanceCachesWithinTTL(t *testing.T) {
	q := &mockQuerier{balances: map[string]float64{"USDT": 1000, "BTC": 2}}
	c, err := New(q, []string{"USDT", "BTC"}, 5*time.Second, &mockLogger{})
	require.NoError(t, err)

	clock := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	ctx := context.Background()

	// First read refreshes both tracked assets in one pass
	got, err := c.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got)
	assert.Equal(t, 2, q.calls)

	// Reads inside the window serve from cache
	got, err = c.GetBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
	assert.Equal(t, 2, q.calls)

	// Past the TTL the next read refreshes again
	clock = clock.Add(5 * time.Second)
	q.balances["USDT"] = 900
	got, err = c.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 900.0, got)
	assert.Equal(t, 4, q.calls)
}

func TestGetBalanceUnknownAsset(t *testing.T) {
	q := &mockQuerier{balances: map[string]float64{"USDT": 1000}}
	c, err := New(q, []string{"USDT"}, 5*time.Second, &mockLogger{})
	require.NoError(t, err)

	_, err = c.GetBalance(context.Background(), "DOGE")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestGetBalanceDegradesFailedAssetToZero(t *testing.T) {
	q := &mockQuerier{
		balances: map[string]float64{"USDT": 1000, "BTC": 2},
		errs:     map[string]error{"BTC": errors.New("exchange unavailable")},
	}
	c, err := New(q, []string{"USDT", "BTC"}, 5*time.Second, &mockLogger{})
	require.NoError(t, err)

	ctx := context.Background()

	got, err := c.GetBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	// The healthy asset is unaffected
	got, err = c.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got)
}

func TestInvalidateForcesRefresh(t *testing.T) {
	q := &mockQuerier{balances: map[string]float64{"USDT": 1000}}
	c, err := New(q, []string{"USDT"}, time.Hour, &mockLogger{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, q.calls)

	q.balances["USDT"] = 500
	c.Invalidate()

	got, err := c.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 500.0, got)
	assert.Equal(t, 2, q.calls)
}
