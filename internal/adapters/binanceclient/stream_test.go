package binanceclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoCoinBot/internal/domain"
)

func newTestStream() *tickStream {
	return &tickStream{
		ticks: make(chan *domain.Tick, 4),
		stopC: make(chan struct{}),
	}
}

func TestBridgeConnectionLossClosesTicks(t *testing.T) {
	s := newTestStream()
	doneC := make(chan struct{})
	stopC := make(chan struct{}, 1)

	lost := make(chan struct{})
	go s.bridge(context.Background(), doneC, stopC, func() { close(lost) })

	close(doneC)

	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("connection loss was not reported")
	}
	_, ok := <-s.ticks
	assert.False(t, ok, "tick channel should close after connection loss")
}

func TestBridgeWaitsForReaderOnCancel(t *testing.T) {
	s := newTestStream()
	doneC := make(chan struct{})
	stopC := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go s.bridge(ctx, doneC, stopC, func() {})
	cancel()

	// Teardown is requested first.
	require.Eventually(t, func() bool { return len(stopC) == 1 }, time.Second, time.Millisecond)

	// Until the read loop exits its handler may still deliver a final tick;
	// this send must not hit a closed channel.
	s.ticks <- &domain.Tick{Symbol: "BTCUSDT", Price: 100, Timestamp: time.Now()}

	close(doneC)

	tick, ok := <-s.ticks
	require.True(t, ok, "the final tick should still be delivered")
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	_, ok = <-s.ticks
	assert.False(t, ok, "tick channel closes once the read loop is done")
}

func TestBridgeStopTearsDownSocket(t *testing.T) {
	s := newTestStream()
	doneC := make(chan struct{})
	stopC := make(chan struct{}, 1)

	go s.bridge(context.Background(), doneC, stopC, func() {})

	s.Stop()
	s.Stop() // idempotent

	require.Eventually(t, func() bool { return len(stopC) == 1 }, time.Second, time.Millisecond)
	close(doneC)

	_, ok := <-s.ticks
	assert.False(t, ok)
}
