package ports

import (
	"context"
	"time"

	"autoCoinBot/internal/domain"
)

// Fill is the confirmed result of an executed market order. A rejected or
// failed order is always reported as an error, never as a zero-quantity fill.
type Fill struct {
	Symbol   string
	Side     domain.OrderSide
	Quantity float64   // base quantity filled
	Notional float64   // quote amount spent (buy) or received (sell)
	Price    float64   // average fill price
	Time     time.Time // fill confirmation time
}

// OrderClient is the order-placement boundary of the engine.
type OrderClient interface {
	// PlaceMarketBuy spends up to notional quote units buying the instrument
	// at market and returns the confirmed fill.
	PlaceMarketBuy(ctx context.Context, symbol string, notional float64) (*Fill, error)

	// PlaceMarketSell sells the given base quantity at market and returns the
	// confirmed fill.
	PlaceMarketSell(ctx context.Context, symbol string, quantity float64) (*Fill, error)
}

// BalanceQuerier is the raw balance boundary; queries may fail per asset.
type BalanceQuerier interface {
	QueryBalance(ctx context.Context, asset string) (float64, error)
}

// FundsSource serves balances to the trading loop. Implementations are either
// a short-TTL cache over live queries or a simulated ledger, selected once at
// construction.
type FundsSource interface {
	GetBalance(ctx context.Context, asset string) (float64, error)
}

// TickStream is one live market-data subscription. The Ticks channel is
// closed when the connection is lost; the caller is expected to resubscribe.
type TickStream interface {
	Ticks() <-chan *domain.Tick
	Stop()
}

// MarketDataSource provides live ticks and historical bars.
type MarketDataSource interface {
	// SubscribeTicks opens a tick subscription covering all given symbols.
	SubscribeTicks(ctx context.Context, symbols []string) (TickStream, error)

	// GetBars retrieves the most recent historical bars for the symbol.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error)
}
