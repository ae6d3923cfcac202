package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoCoinBot/internal/domain"
)

func sell(symbol string, profitPct float64, stopLoss bool, ts time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{
		Symbol:            symbol,
		Side:              domain.Sell,
		Price:             100,
		Quantity:          1,
		Timestamp:         ts,
		ProfitPct:         profitPct,
		StopLossTriggered: stopLoss,
	}
}

func buy(symbol string, ts time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{Symbol: symbol, Side: domain.Buy, Price: 100, Quantity: 1, Timestamp: ts}
}

func TestAnalyzePerformanceEmpty(t *testing.T) {
	m := AnalyzePerformance(nil)
	assert.Zero(t, m.TotalBuys)
	assert.Zero(t, m.TotalSells)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
}

func TestAnalyzePerformance(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*domain.TradeRecord{
		buy("BTCUSDT", ts),
		sell("BTCUSDT", 10, false, ts.Add(time.Hour)),
		buy("BTCUSDT", ts.Add(2*time.Hour)),
		sell("BTCUSDT", 5, false, ts.Add(3*time.Hour)),
		buy("BTCUSDT", ts.Add(4*time.Hour)),
		sell("BTCUSDT", -6, true, ts.Add(5*time.Hour)),
	}

	m := AnalyzePerformance(records)
	assert.Equal(t, 3, m.TotalBuys)
	assert.Equal(t, 3, m.TotalSells)
	assert.Equal(t, 2, m.WinningExits)
	assert.Equal(t, 1, m.LosingExits)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)
	assert.InDelta(t, 9.0, m.TotalProfitPct, 1e-9)
	assert.InDelta(t, 7.5, m.AverageWinPct, 1e-9)
	assert.InDelta(t, -6.0, m.AverageLossPct, 1e-9)
	assert.InDelta(t, 15.0/6.0, m.ProfitFactor, 1e-9)
	assert.Equal(t, 1, m.StopLossExits)
	assert.Equal(t, 2, m.MaxConsecutiveWins)
	assert.Equal(t, 1, m.MaxConsecutiveLosses)
}

func TestTradesOnDay(t *testing.T) {
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	records := []*domain.TradeRecord{
		sell("A", 1, false, day.Add(-time.Minute)),
		sell("B", 1, false, day.Add(time.Hour)),
		sell("C", 1, false, day.Add(23*time.Hour+59*time.Minute)),
		sell("D", 1, false, day.Add(25*time.Hour)),
	}
	got := TradesOnDay(records, day.Add(12*time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Symbol)
	assert.Equal(t, "C", got[1].Symbol)
}

func TestStatusReportFiltersInactive(t *testing.T) {
	statuses := []InstrumentStatus{
		{Symbol: "ETHUSDT", Price: 2000},
		{Symbol: "BTCUSDT", Price: 110, Quantity: 4, AvgEntryPrice: 100, Holding: true,
			Indicators: map[string]string{"rsi": "35.2"}},
		{Symbol: "SOLUSDT", Price: 50, CumulativeProfit: -2.5},
	}
	report := StatusReport(statuses, 600_000, "USDT")

	assert.Contains(t, report, "cash 600000.00 USDT")
	assert.Contains(t, report, "BTCUSDT")
	assert.Contains(t, report, "unrealized +10.00%")
	assert.Contains(t, report, "rsi=35.2")
	assert.Contains(t, report, "SOLUSDT")
	assert.Contains(t, report, "-2.50%")
	assert.NotContains(t, report, "ETHUSDT")
}

func TestStatusReportNoActivity(t *testing.T) {
	report := StatusReport([]InstrumentStatus{{Symbol: "ETHUSDT", Price: 2000}}, 1000, "USDT")
	assert.Contains(t, report, "no activity")
}

func TestDailyReport(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*domain.TradeRecord{
		buy("BTCUSDT", ts),
		sell("BTCUSDT", 10, false, ts.Add(time.Hour)),
		buy("ETHUSDT", ts),
		sell("ETHUSDT", -4, true, ts.Add(2*time.Hour)),
	}
	report := DailyReport(ts, records)

	assert.Contains(t, report, "Daily report 2024-03-01")
	assert.Contains(t, report, "BTCUSDT: 1 buys, 1 sells, realized +10.00%")
	assert.Contains(t, report, "ETHUSDT: 1 buys, 1 sells, realized -4.00% (1 stop-loss)")
	assert.Contains(t, report, "total: 4 trades")
}

func TestDailyReportNoTrades(t *testing.T) {
	report := DailyReport(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil)
	assert.Contains(t, report, "no trades")
}
