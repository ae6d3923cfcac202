package ports

import (
	"context"

	"autoCoinBot/internal/domain"
)

// Analyzer is the per-instrument signal model. Implementations own the bar
// history they evaluate; the scheduler loop is responsible for keeping it
// refreshed via SetBars.
type Analyzer interface {
	// RequiredDataPoints returns the minimum number of bars needed before any
	// evaluation can produce a non-HOLD signal.
	RequiredDataPoints() int

	// SetBars replaces the bar history used for evaluation.
	SetBars(bars []*domain.Bar)

	// Evaluate classifies the bar at atIndex. An out-of-range index yields a
	// HOLD signal with no reason; it never panics.
	Evaluate(ctx context.Context, atIndex int) domain.Signal

	// EvaluateLatest evaluates the most recent bar.
	EvaluateLatest(ctx context.Context) domain.Signal

	// PeekLatest evaluates the most recent bar without side effects. Reporting
	// must use it: only Evaluate/EvaluateLatest may advance internal state
	// such as a cooldown window.
	PeekLatest(ctx context.Context) domain.Signal
}
