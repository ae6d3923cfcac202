package risk

import (
	"fmt"
	"math"

	"autoCoinBot/internal/domain"
)

// Config holds the capital and exposure limits enforced on every order.
type Config struct {
	// StartCash is the capital base the per-instrument cap is derived from.
	StartCash float64

	// PerCoinCapFraction is the per-instrument spend cap as a fraction of
	// StartCash, e.g. 0.125 for one eighth.
	PerCoinCapFraction float64

	// MaxPositions caps how many instruments may hold a significant position
	// at the same time.
	MaxPositions int

	// MinOrderAmount is the exchange minimum order notional. Positions below
	// it are dust and do not count against MaxPositions.
	MinOrderAmount float64

	// StopLoss is the fraction below average entry at which a position is
	// force-exited, e.g. 0.05.
	StopLoss float64

	// AveragingFraction sizes the one-time averaging-down buy as a fraction
	// of the current position value.
	AveragingFraction float64
}

// Manager enforces the exposure limits. It is stateless beyond its config;
// position state lives with the engine and is passed in per call.
type Manager struct {
	cfg Config
}

// NewManager creates a new risk manager instance.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.StartCash <= 0 {
		return nil, fmt.Errorf("start cash must be positive")
	}
	if cfg.PerCoinCapFraction <= 0 || cfg.PerCoinCapFraction > 1.0 {
		return nil, fmt.Errorf("per-coin cap fraction must be in (0.0, 1.0]")
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("max positions must be positive")
	}
	if cfg.MinOrderAmount <= 0 {
		return nil, fmt.Errorf("minimum order amount must be positive")
	}
	if cfg.StopLoss <= 0 || cfg.StopLoss >= 1.0 {
		return nil, fmt.Errorf("stop loss must be between 0.0 and 1.0 (exclusive)")
	}
	if cfg.AveragingFraction <= 0 || cfg.AveragingFraction > 1.0 {
		return nil, fmt.Errorf("averaging fraction must be in (0.0, 1.0]")
	}
	return &Manager{cfg: cfg}, nil
}

// PerInstrumentCap returns the maximum notional a single instrument may hold.
func (m *Manager) PerInstrumentCap() float64 {
	return m.cfg.StartCash * m.cfg.PerCoinCapFraction
}

// MinOrderAmount returns the exchange minimum order notional.
func (m *Manager) MinOrderAmount() float64 {
	return m.cfg.MinOrderAmount
}

// IsSignificant reports whether a position is large enough to count against
// the concurrency cap. Dust left over from rounding does not.
func (m *Manager) IsSignificant(state *domain.InstrumentState) bool {
	return state.Holding && state.Quantity*state.AvgEntryPrice >= m.cfg.MinOrderAmount
}

// CanOpen reports whether a new position may be opened given the current
// per-instrument states.
func (m *Manager) CanOpen(states map[string]*domain.InstrumentState) error {
	open := 0
	for _, s := range states {
		if m.IsSignificant(s) {
			open++
		}
	}
	if open >= m.cfg.MaxPositions {
		return fmt.Errorf("open positions %d at maximum allowed %d", open, m.cfg.MaxPositions)
	}
	return nil
}

// EntrySize returns the notional to spend on a new entry: the per-instrument
// cap, bounded by available cash. An error means the affordable size is below
// the exchange minimum and no order should be placed.
func (m *Manager) EntrySize(availableCash float64) (float64, error) {
	size := math.Min(m.PerInstrumentCap(), availableCash)
	if size < m.cfg.MinOrderAmount {
		return 0, fmt.Errorf("entry size %.2f below minimum order amount %.2f", size, m.cfg.MinOrderAmount)
	}
	return size, nil
}

// AveragingSize returns the notional for the one-time averaging-down buy,
// sized from the current position value and bounded by available cash.
func (m *Manager) AveragingSize(state *domain.InstrumentState, currentPrice, availableCash float64) (float64, error) {
	if !state.Holding {
		return 0, fmt.Errorf("no position to average down on %s", state.Symbol)
	}
	if state.AveragingDownUsed {
		return 0, fmt.Errorf("averaging down already used on %s", state.Symbol)
	}
	size := math.Min(m.cfg.AveragingFraction*state.Quantity*currentPrice, availableCash)
	if size < m.cfg.MinOrderAmount {
		return 0, fmt.Errorf("averaging size %.2f below minimum order amount %.2f", size, m.cfg.MinOrderAmount)
	}
	return size, nil
}

// StopLossPrice returns the price at which the position's stop loss triggers.
func (m *Manager) StopLossPrice(avgEntryPrice float64) float64 {
	return avgEntryPrice * (1 - m.cfg.StopLoss)
}

// StopLossBreached reports whether the current price has fallen to or below
// the position's stop-loss price.
func (m *Manager) StopLossBreached(state *domain.InstrumentState, currentPrice float64) bool {
	if !state.Holding {
		return false
	}
	return currentPrice <= m.StopLossPrice(state.AvgEntryPrice)
}
