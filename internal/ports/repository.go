package ports

import (
	"context"
	"time"

	"autoCoinBot/internal/domain"
)

// TradeRepository defines the interface for the append-only trade log.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, rec *domain.TradeRecord) (int64, error)
	// FindBySymbol retrieves the most recent trades for a symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error)
	// FindSince retrieves all trades executed at or after the given time,
	// ordered by timestamp ascending.
	FindSince(ctx context.Context, since time.Time) ([]*domain.TradeRecord, error)
	// TotalProfitPctBySymbol sums realized profit percentage points over all
	// recorded sells for a symbol.
	TotalProfitPctBySymbol(ctx context.Context, symbol string) (float64, error)
	// PurgeOlderThan deletes records older than the cutoff and returns the
	// number of rows removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateRepository persists per-instrument position state so an open position
// survives a process restart.
type StateRepository interface {
	// SaveState upserts one instrument's position state.
	SaveState(ctx context.Context, state *domain.InstrumentState) error
	// LoadStates retrieves every persisted instrument state.
	LoadStates(ctx context.Context) ([]*domain.InstrumentState, error)
}
