package risk

import (
	"testing"

	"autoCoinBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		StartCash:          1_000_000,
		PerCoinCapFraction: 0.125,
		MaxPositions:       2,
		MinOrderAmount:     5000,
		StopLoss:           0.05,
		AveragingFraction:  0.5,
	}
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "zero start cash", mutate: func(c *Config) { c.StartCash = 0 }, wantErr: true},
		{name: "cap fraction above one", mutate: func(c *Config) { c.PerCoinCapFraction = 1.5 }, wantErr: true},
		{name: "zero max positions", mutate: func(c *Config) { c.MaxPositions = 0 }, wantErr: true},
		{name: "zero min order", mutate: func(c *Config) { c.MinOrderAmount = 0 }, wantErr: true},
		{name: "stop loss of one", mutate: func(c *Config) { c.StopLoss = 1.0 }, wantErr: true},
		{name: "zero averaging fraction", mutate: func(c *Config) { c.AveragingFraction = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			m, err := NewManager(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, m)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, m)
			}
		})
	}
}

func TestPerInstrumentCap(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)
	assert.Equal(t, 125_000.0, m.PerInstrumentCap())
}

func TestIsSignificant(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	assert.False(t, m.IsSignificant(&domain.InstrumentState{Symbol: "BTCUSDT"}))
	// Dust: notional 100 is below the 5000 minimum
	assert.False(t, m.IsSignificant(&domain.InstrumentState{
		Symbol: "BTCUSDT", Holding: true, Quantity: 1, AvgEntryPrice: 100,
	}))
	assert.True(t, m.IsSignificant(&domain.InstrumentState{
		Symbol: "BTCUSDT", Holding: true, Quantity: 100, AvgEntryPrice: 100,
	}))
}

func TestCanOpen(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	states := map[string]*domain.InstrumentState{
		"BTCUSDT": {Symbol: "BTCUSDT", Holding: true, Quantity: 100, AvgEntryPrice: 100},
		"ETHUSDT": {Symbol: "ETHUSDT"},
		"XRPUSDT": {Symbol: "XRPUSDT"},
	}
	assert.NoError(t, m.CanOpen(states))

	states["ETHUSDT"] = &domain.InstrumentState{Symbol: "ETHUSDT", Holding: true, Quantity: 50, AvgEntryPrice: 200}
	assert.Error(t, m.CanOpen(states))

	// Dust positions do not count against the cap
	states["ETHUSDT"] = &domain.InstrumentState{Symbol: "ETHUSDT", Holding: true, Quantity: 1, AvgEntryPrice: 100}
	assert.NoError(t, m.CanOpen(states))
}

func TestEntrySize(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	// Ample cash: spend the full per-instrument cap
	size, err := m.EntrySize(1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 125_000.0, size)

	// Cash below the cap: spend what is available
	size, err = m.EntrySize(60_000)
	require.NoError(t, err)
	assert.Equal(t, 60_000.0, size)

	// Below the exchange minimum: refuse
	_, err = m.EntrySize(4000)
	assert.Error(t, err)
}

func TestAveragingSize(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	held := &domain.InstrumentState{
		Symbol: "BTCUSDT", Holding: true, Quantity: 400, AvgEntryPrice: 100,
	}

	// Half of the position value at the current price
	size, err := m.AveragingSize(held, 90, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 18_000.0, size)

	// Bounded by available cash
	size, err = m.AveragingSize(held, 90, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 10_000.0, size)

	// One-shot: already used
	used := *held
	used.AveragingDownUsed = true
	_, err = m.AveragingSize(&used, 90, 1_000_000)
	assert.Error(t, err)

	// No position
	_, err = m.AveragingSize(&domain.InstrumentState{Symbol: "BTCUSDT"}, 90, 1_000_000)
	assert.Error(t, err)

	// Below the exchange minimum
	small := &domain.InstrumentState{Symbol: "BTCUSDT", Holding: true, Quantity: 10, AvgEntryPrice: 100}
	_, err = m.AveragingSize(small, 90, 1_000_000)
	assert.Error(t, err)
}

func TestStopLoss(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	assert.Equal(t, 95.0, m.StopLossPrice(100))

	held := &domain.InstrumentState{Symbol: "BTCUSDT", Holding: true, Quantity: 100, AvgEntryPrice: 100}
	assert.False(t, m.StopLossBreached(held, 96))
	assert.True(t, m.StopLossBreached(held, 95)) // boundary triggers
	assert.True(t, m.StopLossBreached(held, 90))

	flat := &domain.InstrumentState{Symbol: "BTCUSDT"}
	assert.False(t, m.StopLossBreached(flat, 1))
}
