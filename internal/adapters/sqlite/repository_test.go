package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autoCoinBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}
func (m *mockLogger) Fatal(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "trading-bot-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func TestNewRepositoryRequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: "ignored.db"})
	assert.Error(t, err)
}

func TestRepository_CreateAndFindTrades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	buy := &domain.TradeRecord{
		Symbol:    "BTCUSDT",
		Side:      domain.Buy,
		Price:     100,
		Quantity:  4000,
		Timestamp: base,
	}
	sell := &domain.TradeRecord{
		Symbol:            "BTCUSDT",
		Side:              domain.Sell,
		Price:             110,
		Quantity:          4000,
		Timestamp:         base.Add(time.Hour),
		ProfitPct:         10,
		StopLossTriggered: false,
	}

	id, err := repo.CreateTrade(ctx, buy)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, buy.ID)

	_, err = repo.CreateTrade(ctx, sell)
	require.NoError(t, err)

	// Other symbol, should not appear in BTCUSDT queries
	_, err = repo.CreateTrade(ctx, &domain.TradeRecord{
		Symbol: "ETHUSDT", Side: domain.Buy, Price: 2000, Quantity: 1, Timestamp: base,
	})
	require.NoError(t, err)

	trades, err := repo.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// Most recent first
	assert.Equal(t, domain.Sell, trades[0].Side)
	assert.Equal(t, 110.0, trades[0].Price)
	assert.InDelta(t, 10.0, trades[0].ProfitPct, 0.0001)
	assert.Equal(t, domain.Buy, trades[1].Side)

	// Limit applies
	trades, err = repo.FindBySymbol(ctx, "BTCUSDT", 1)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRepository_FindSince(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)} {
		_, err := repo.CreateTrade(ctx, &domain.TradeRecord{
			Symbol: "BTCUSDT", Side: domain.Buy, Price: float64(100 + i), Quantity: 1, Timestamp: ts,
		})
		require.NoError(t, err)
	}

	trades, err := repo.FindSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// Ascending order
	assert.Equal(t, 101.0, trades[0].Price)
	assert.Equal(t, 102.0, trades[1].Price)
}

func TestRepository_TotalProfitPctBySymbol(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	records := []*domain.TradeRecord{
		{Symbol: "BTCUSDT", Side: domain.Buy, Price: 100, Quantity: 1, Timestamp: base},
		{Symbol: "BTCUSDT", Side: domain.Sell, Price: 110, Quantity: 1, Timestamp: base, ProfitPct: 10},
		{Symbol: "BTCUSDT", Side: domain.Sell, Price: 95, Quantity: 1, Timestamp: base, ProfitPct: -5, StopLossTriggered: true},
		{Symbol: "ETHUSDT", Side: domain.Sell, Price: 2000, Quantity: 1, Timestamp: base, ProfitPct: 3},
	}
	for _, rec := range records {
		_, err := repo.CreateTrade(ctx, rec)
		require.NoError(t, err)
	}

	total, err := repo.TotalProfitPctBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, total, 0.0001)

	// No sells recorded
	total, err = repo.TotalProfitPctBySymbol(ctx, "DOGEUSDT")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRepository_PurgeOlderThan(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{base, base.AddDate(0, 0, 40)} {
		_, err := repo.CreateTrade(ctx, &domain.TradeRecord{
			Symbol: "BTCUSDT", Side: domain.Buy, Price: 100, Quantity: 1, Timestamp: ts,
		})
		require.NoError(t, err)
	}

	removed, err := repo.PurgeOlderThan(ctx, base.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	trades, err := repo.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRepository_SaveAndLoadStates(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	held := &domain.InstrumentState{
		Symbol:            "BTCUSDT",
		Holding:           true,
		Quantity:          4000,
		AvgEntryPrice:     98,
		CumulativeProfit:  12.5,
		AveragingDownUsed: true,
	}
	require.NoError(t, repo.SaveState(ctx, held))
	require.NoError(t, repo.SaveState(ctx, &domain.InstrumentState{Symbol: "ETHUSDT"}))

	states, err := repo.LoadStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)

	bySymbol := make(map[string]*domain.InstrumentState, len(states))
	for _, s := range states {
		bySymbol[s.Symbol] = s
	}
	got := bySymbol["BTCUSDT"]
	require.NotNil(t, got)
	assert.True(t, got.Holding)
	assert.Equal(t, 4000.0, got.Quantity)
	assert.Equal(t, 98.0, got.AvgEntryPrice)
	assert.InDelta(t, 12.5, got.CumulativeProfit, 0.0001)
	assert.True(t, got.AveragingDownUsed)

	// Upsert: a full exit overwrites the previous row
	held.Reset()
	require.NoError(t, repo.SaveState(ctx, held))

	states, err = repo.LoadStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, s := range states {
		if s.Symbol == "BTCUSDT" {
			assert.False(t, s.Holding)
			assert.Zero(t, s.Quantity)
			assert.False(t, s.AveragingDownUsed)
			assert.InDelta(t, 12.5, s.CumulativeProfit, 0.0001)
		}
	}
}
