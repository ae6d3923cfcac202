package domain

// InstrumentState is the per-instrument position record owned exclusively by
// the position engine. Invariant: Quantity == 0 exactly when Holding == false,
// and AveragingDownUsed may only be true while Holding is true.
type InstrumentState struct {
	Symbol string

	Holding       bool    // true iff a non-trivial quantity is currently held
	Quantity      float64 // amount held, never negative
	AvgEntryPrice float64 // volume-weighted average entry price; zero while flat

	// CumulativeProfit is the running sum of realized profit across closed
	// trades, in percentage points (not a compounding return).
	CumulativeProfit float64

	// AveragingDownUsed latches true after the one-time cost-averaging buy for
	// the currently open position and resets on full exit.
	AveragingDownUsed bool
}

// Reset returns the state to flat after a full exit.
func (s *InstrumentState) Reset() {
	s.Holding = false
	s.Quantity = 0
	s.AvgEntryPrice = 0
	s.AveragingDownUsed = false
}
