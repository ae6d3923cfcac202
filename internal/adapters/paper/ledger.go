package paper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"
)

// Ledger is a simulated exchange for dry-run mode: it fills market orders
// instantly at the last observed price and tracks cash and per-asset holdings
// in memory. It implements both the order and the funds boundaries, so the
// engine runs unchanged against it.
//
// Owned by the scheduler loop; not safe for concurrent use.
type Ledger struct {
	quoteAsset string
	cash       float64
	holdings   map[string]float64 // base asset -> quantity
	prices     map[string]float64 // symbol -> last observed price
	logger     ports.Logger

	now func() time.Time // injectable for tests
}

// New creates a ledger starting with the given cash in the quote asset.
func New(quoteAsset string, startCash float64, logger ports.Logger) (*Ledger, error) {
	if quoteAsset == "" {
		return nil, fmt.Errorf("quote asset is required for paper ledger")
	}
	if startCash <= 0 {
		return nil, fmt.Errorf("starting cash must be positive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for paper ledger")
	}
	return &Ledger{
		quoteAsset: quoteAsset,
		cash:       startCash,
		holdings:   make(map[string]float64),
		prices:     make(map[string]float64),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetPrice records the last observed price for a symbol. The scheduler loop
// feeds every tick through here so fills use current market prices.
func (l *Ledger) SetPrice(symbol string, price float64) {
	if price > 0 {
		l.prices[symbol] = price
	}
}

// baseAsset derives the base asset of a symbol by stripping the quote suffix.
func (l *Ledger) baseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, l.quoteAsset)
}

// PlaceMarketBuy fills a buy instantly at the last observed price.
func (l *Ledger) PlaceMarketBuy(ctx context.Context, symbol string, notional float64) (*ports.Fill, error) {
	price, ok := l.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no observed price for %s: %w", symbol, ports.ErrInvalidRequest)
	}
	if notional <= 0 {
		return nil, fmt.Errorf("non-positive notional %.2f: %w", notional, ports.ErrInvalidRequest)
	}
	if notional > l.cash {
		return nil, fmt.Errorf("notional %.2f exceeds cash %.2f: %w", notional, l.cash, ports.ErrInsufficientFunds)
	}

	quantity := notional / price
	l.cash -= notional
	l.holdings[l.baseAsset(symbol)] += quantity

	l.logger.Debug(ctx, "Paper buy filled", map[string]interface{}{
		"symbol": symbol, "notional": notional, "price": price, "quantity": quantity, "cash": l.cash,
	})
	return &ports.Fill{
		Symbol:   symbol,
		Side:     domain.Buy,
		Quantity: quantity,
		Notional: notional,
		Price:    price,
		Time:     l.now(),
	}, nil
}

// PlaceMarketSell fills a sell instantly at the last observed price.
func (l *Ledger) PlaceMarketSell(ctx context.Context, symbol string, quantity float64) (*ports.Fill, error) {
	price, ok := l.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no observed price for %s: %w", symbol, ports.ErrInvalidRequest)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("non-positive quantity %.8f: %w", quantity, ports.ErrInvalidRequest)
	}
	base := l.baseAsset(symbol)
	if held := l.holdings[base]; quantity > held {
		return nil, fmt.Errorf("quantity %.8f exceeds holding %.8f: %w", quantity, held, ports.ErrInsufficientFunds)
	}

	notional := quantity * price
	l.holdings[base] -= quantity
	l.cash += notional

	l.logger.Debug(ctx, "Paper sell filled", map[string]interface{}{
		"symbol": symbol, "quantity": quantity, "price": price, "notional": notional, "cash": l.cash,
	})
	return &ports.Fill{
		Symbol:   symbol,
		Side:     domain.Sell,
		Quantity: quantity,
		Notional: notional,
		Price:    price,
		Time:     l.now(),
	}, nil
}

// GetBalance returns the simulated balance for an asset: cash for the quote
// asset, held quantity for anything else.
func (l *Ledger) GetBalance(ctx context.Context, asset string) (float64, error) {
	if asset == l.quoteAsset {
		return l.cash, nil
	}
	return l.holdings[asset], nil
}
