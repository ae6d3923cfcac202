package analytics

import (
	"time"

	"autoCoinBot/internal/domain"
)

// PerformanceMetrics summarizes realized trading results over a set of trade
// records. Only sell records close a trade, so all ratios are computed over
// sells; profits are percentage points relative to average entry.
type PerformanceMetrics struct {
	TotalBuys      int
	TotalSells     int
	WinningExits   int
	LosingExits    int
	WinRate        float64
	TotalProfitPct float64
	AverageWinPct  float64
	AverageLossPct float64
	ProfitFactor   float64
	Expectancy     float64
	StopLossExits  int

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
}

// AnalyzePerformance computes metrics from trade records in timestamp order.
func AnalyzePerformance(records []*domain.TradeRecord) *PerformanceMetrics {
	m := &PerformanceMetrics{}

	var grossWin, grossLoss float64
	var consecWins, consecLosses int

	for _, rec := range records {
		if rec.Side == domain.Buy {
			m.TotalBuys++
			continue
		}
		m.TotalSells++
		m.TotalProfitPct += rec.ProfitPct
		if rec.StopLossTriggered {
			m.StopLossExits++
		}

		if rec.ProfitPct > 0 {
			m.WinningExits++
			grossWin += rec.ProfitPct
			consecWins++
			consecLosses = 0
		} else {
			m.LosingExits++
			grossLoss += rec.ProfitPct
			consecLosses++
			consecWins = 0
		}
		if consecWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = consecWins
		}
		if consecLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = consecLosses
		}
	}

	if m.TotalSells > 0 {
		m.WinRate = float64(m.WinningExits) / float64(m.TotalSells)
	}
	if m.WinningExits > 0 {
		m.AverageWinPct = grossWin / float64(m.WinningExits)
	}
	if m.LosingExits > 0 {
		m.AverageLossPct = grossLoss / float64(m.LosingExits)
	}
	if grossLoss != 0 {
		m.ProfitFactor = grossWin / -grossLoss
	}
	m.Expectancy = m.WinRate*m.AverageWinPct + (1-m.WinRate)*m.AverageLossPct

	return m
}

// TradesOnDay filters records to those executed on the given calendar day in
// the day's location.
func TradesOnDay(records []*domain.TradeRecord, day time.Time) []*domain.TradeRecord {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var out []*domain.TradeRecord
	for _, rec := range records {
		ts := rec.Timestamp.In(day.Location())
		if !ts.Before(start) && ts.Before(end) {
			out = append(out, rec)
		}
	}
	return out
}
