package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"autoCoinBot/internal/domain"
)

// InstrumentStatus is one instrument's line item in a status report.
type InstrumentStatus struct {
	Symbol           string
	Price            float64
	Quantity         float64
	AvgEntryPrice    float64
	CumulativeProfit float64
	Holding          bool
	Indicators       map[string]string
}

// UnrealizedPct returns the open position's unrealized profit in percent, or
// zero while flat.
func (s InstrumentStatus) UnrealizedPct() float64 {
	if !s.Holding || s.AvgEntryPrice <= 0 {
		return 0
	}
	return (s.Price - s.AvgEntryPrice) / s.AvgEntryPrice * 100
}

// StatusReport renders the periodic status message. Instruments with no
// activity (flat and no realized profit yet) are omitted so the message stays
// readable with a large basket.
func StatusReport(statuses []InstrumentStatus, cash float64, quoteAsset string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status — cash %.2f %s\n", cash, quoteAsset)

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Symbol < statuses[j].Symbol })

	active := 0
	for _, st := range statuses {
		if !st.Holding && st.CumulativeProfit == 0 {
			continue
		}
		active++
		if st.Holding {
			fmt.Fprintf(&b, "%s: price %.4f, qty %.6f @ %.4f, unrealized %+.2f%%, realized %+.2f%%\n",
				st.Symbol, st.Price, st.Quantity, st.AvgEntryPrice, st.UnrealizedPct(), st.CumulativeProfit)
		} else {
			fmt.Fprintf(&b, "%s: price %.4f, flat, realized %+.2f%%\n",
				st.Symbol, st.Price, st.CumulativeProfit)
		}
		if len(st.Indicators) > 0 {
			fmt.Fprintf(&b, "  indicators: %s\n", formatIndicators(st.Indicators))
		}
	}
	if active == 0 {
		b.WriteString("no activity\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// DailyReport renders the scheduled daily summary for trades of one day.
func DailyReport(day time.Time, records []*domain.TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily report %s\n", day.Format("2006-01-02"))

	if len(records) == 0 {
		b.WriteString("no trades")
		return b.String()
	}

	bySymbol := make(map[string][]*domain.TradeRecord)
	var symbols []string
	for _, rec := range records {
		if _, ok := bySymbol[rec.Symbol]; !ok {
			symbols = append(symbols, rec.Symbol)
		}
		bySymbol[rec.Symbol] = append(bySymbol[rec.Symbol], rec)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		m := AnalyzePerformance(bySymbol[sym])
		fmt.Fprintf(&b, "%s: %d buys, %d sells, realized %+.2f%%",
			sym, m.TotalBuys, m.TotalSells, m.TotalProfitPct)
		if m.StopLossExits > 0 {
			fmt.Fprintf(&b, " (%d stop-loss)", m.StopLossExits)
		}
		b.WriteString("\n")
	}

	total := AnalyzePerformance(records)
	fmt.Fprintf(&b, "total: %d trades, win rate %.0f%%, realized %+.2f%%",
		total.TotalBuys+total.TotalSells, total.WinRate*100, total.TotalProfitPct)
	return b.String()
}

func formatIndicators(indicators map[string]string) string {
	keys := make([]string, 0, len(indicators))
	for k := range indicators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+indicators[k])
	}
	return strings.Join(parts, ", ")
}
