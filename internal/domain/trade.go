package domain

import "time"

// TradeRecord is an append-only record of one executed buy or sell. It is
// created the instant a fill is confirmed and never mutated afterwards.
type TradeRecord struct {
	ID        int64
	Symbol    string
	Side      OrderSide
	Price     float64 // average fill price
	Quantity  float64
	Timestamp time.Time

	// Sell-only fields.
	ProfitPct         float64 // realized profit in percent relative to avg entry
	StopLossTriggered bool
}
