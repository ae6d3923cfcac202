package engine

import (
	"context"
	"fmt"
	"time"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"
	"autoCoinBot/internal/retry"
	"autoCoinBot/internal/risk"
)

// Notifier is the outbound-message gate the engine reports through. A false
// return means the message was dropped or queued, never an error.
type Notifier interface {
	Send(ctx context.Context, channel domain.ChannelClass, body string, important bool) bool
}

// Config holds the engine's own parameters; exposure limits live in the risk
// manager.
type Config struct {
	// QuoteAsset is the cash asset all notionals are denominated in.
	QuoteAsset string
}

// Engine is the per-instrument position state machine. It is the sole writer
// of position state and the sole caller of the order boundary.
//
// Each instrument cycles FLAT -> HOLDING -> FLAT. While HOLDING, a stop-loss
// breach first attempts the one-time averaging-down buy; a later breach (or a
// failed averaging attempt) forces the exit. The stop-loss check runs before
// the signal-driven paths on every tick, so a SELL signal never races a
// forced exit.
//
// The engine is owned by the scheduler loop and is not safe for concurrent
// use.
type Engine struct {
	cfg    Config
	orders ports.OrderClient
	funds  ports.FundsSource
	repo   ports.TradeRepository
	limits *risk.Manager
	retry  *retry.Policy
	notify Notifier
	logger ports.Logger

	states map[string]*domain.InstrumentState
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Orders   ports.OrderClient
	Funds    ports.FundsSource
	Repo     ports.TradeRepository
	Limits   *risk.Manager
	Retry    *retry.Policy
	Notifier Notifier
	Logger   ports.Logger
}

// New creates an engine tracking the given symbols, all starting flat.
func New(cfg Config, symbols []string, deps Deps) (*Engine, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("order client is required for engine")
	}
	if deps.Funds == nil {
		return nil, fmt.Errorf("funds source is required for engine")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("trade repository is required for engine")
	}
	if deps.Limits == nil {
		return nil, fmt.Errorf("risk manager is required for engine")
	}
	if deps.Retry == nil {
		return nil, fmt.Errorf("retry policy is required for engine")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required for engine")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for engine")
	}
	if cfg.QuoteAsset == "" {
		return nil, fmt.Errorf("quote asset is required for engine")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required for engine")
	}

	states := make(map[string]*domain.InstrumentState, len(symbols))
	for _, s := range symbols {
		states[s] = &domain.InstrumentState{Symbol: s}
	}
	return &Engine{
		cfg:    cfg,
		orders: deps.Orders,
		funds:  deps.Funds,
		repo:   deps.Repo,
		limits: deps.Limits,
		retry:  deps.Retry,
		notify: deps.Notifier,
		logger: deps.Logger,
		states: states,
	}, nil
}

// State returns the live position state for a symbol, or nil if untracked.
// Callers must treat it as read-only.
func (e *Engine) State(symbol string) *domain.InstrumentState {
	return e.states[symbol]
}

// States returns the full position map. Callers must treat it as read-only.
func (e *Engine) States() map[string]*domain.InstrumentState {
	return e.states
}

// RestoreState replaces one instrument's position state. Used at startup to
// resume a position carried over from a previous session.
func (e *Engine) RestoreState(state *domain.InstrumentState) error {
	if _, ok := e.states[state.Symbol]; !ok {
		return fmt.Errorf("symbol %s is not tracked: %w", state.Symbol, ports.ErrNotFound)
	}
	if state.Holding != (state.Quantity > 0) {
		return fmt.Errorf("inconsistent restored state for %s: %w", state.Symbol, ports.ErrInvalidRequest)
	}
	e.states[state.Symbol] = state
	return nil
}

// OnTick advances the state machine for one instrument by one price event.
// All failures are absorbed here: a failed transition is logged and alerted,
// the state stays unchanged, and the loop moves on to the next event.
func (e *Engine) OnTick(ctx context.Context, symbol string, price float64, sig domain.Signal) {
	st, ok := e.states[symbol]
	if !ok {
		e.logger.Warn(ctx, "Tick for untracked symbol ignored", map[string]interface{}{"symbol": symbol})
		return
	}
	if price <= 0 {
		e.logger.Warn(ctx, "Non-positive price ignored", map[string]interface{}{"symbol": symbol, "price": price})
		return
	}

	// Stop-loss first; a forced exit pre-empts any signal on the same tick.
	if e.limits.StopLossBreached(st, price) {
		if !st.AveragingDownUsed {
			if err := e.averageDown(ctx, st, price); err == nil {
				return
			}
			// Averaging refused or failed: fall through and exit.
		}
		e.exit(ctx, st, price, sig.Reason, true)
		return
	}

	switch sig.Action {
	case domain.ActionBuy:
		if st.Holding {
			// Already holding: the buy is a no-op, not an error.
			e.logger.Debug(ctx, "Buy signal ignored while holding", map[string]interface{}{"symbol": symbol})
			return
		}
		e.enter(ctx, st, price, sig.Reason)
	case domain.ActionSell:
		if !st.Holding {
			e.logger.Debug(ctx, "Sell signal ignored while flat", map[string]interface{}{"symbol": symbol})
			return
		}
		e.exit(ctx, st, price, sig.Reason, false)
	}
}

// enter opens a new position: FLAT -> HOLDING.
func (e *Engine) enter(ctx context.Context, st *domain.InstrumentState, price float64, reason string) {
	op := "enter"

	if err := e.limits.CanOpen(e.states); err != nil {
		// Capacity exhausted: the signal is dropped, never queued.
		e.logger.Debug(ctx, "Buy signal dropped at capacity", map[string]interface{}{
			"op": op, "symbol": st.Symbol, "reason": err.Error(),
		})
		return
	}

	cash, err := e.availableCash(ctx)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to read cash balance, abandoning entry", map[string]interface{}{
			"op": op, "symbol": st.Symbol,
		})
		return
	}

	notional, err := e.limits.EntrySize(cash)
	if err != nil {
		e.logger.Debug(ctx, "Entry size refused", map[string]interface{}{
			"op": op, "symbol": st.Symbol, "cash": cash, "reason": err.Error(),
		})
		return
	}

	var fill *ports.Fill
	err = e.retry.Do(ctx, "placeMarketBuy", func(ctx context.Context) error {
		var opErr error
		fill, opErr = e.orders.PlaceMarketBuy(ctx, st.Symbol, notional)
		return opErr
	})
	if err != nil {
		// Retries exhausted: the transition is abandoned with no state change.
		e.logger.Error(ctx, err, "Buy order failed, no state change", map[string]interface{}{
			"op": op, "symbol": st.Symbol, "notional": notional,
		})
		return
	}

	st.Holding = true
	st.Quantity = fill.Quantity
	st.AvgEntryPrice = fill.Price
	e.invalidateFunds()

	e.record(ctx, &domain.TradeRecord{
		Symbol:    st.Symbol,
		Side:      domain.Buy,
		Price:     fill.Price,
		Quantity:  fill.Quantity,
		Timestamp: fill.Time,
	})
	e.notify.Send(ctx, domain.ChannelTrade,
		fmt.Sprintf("BUY %s: %.6f @ %.4f (spent %.2f %s) — %s",
			st.Symbol, fill.Quantity, fill.Price, fill.Notional, e.cfg.QuoteAsset, reason),
		true)
	e.logger.Info(ctx, "Position opened", map[string]interface{}{
		"op": op, "symbol": st.Symbol, "quantity": fill.Quantity, "price": fill.Price,
	})
}

// averageDown executes the one-time cost-averaging buy on a stop-loss breach:
// HOLDING -> HOLDING(AVERAGED).
func (e *Engine) averageDown(ctx context.Context, st *domain.InstrumentState, price float64) error {
	op := "averageDown"

	cash, err := e.availableCash(ctx)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to read cash balance for averaging", map[string]interface{}{
			"op": op, "symbol": st.Symbol,
		})
		return err
	}

	notional, err := e.limits.AveragingSize(st, price, cash)
	if err != nil {
		e.logger.Debug(ctx, "Averaging size refused", map[string]interface{}{
			"op": op, "symbol": st.Symbol, "cash": cash, "reason": err.Error(),
		})
		return err
	}

	var fill *ports.Fill
	err = e.retry.Do(ctx, "placeMarketBuy", func(ctx context.Context) error {
		var opErr error
		fill, opErr = e.orders.PlaceMarketBuy(ctx, st.Symbol, notional)
		return opErr
	})
	if err != nil {
		e.logger.Error(ctx, err, "Averaging buy failed, falling through to stop-loss exit", map[string]interface{}{
			"op": op, "symbol": st.Symbol, "notional": notional,
		})
		return err
	}

	// Recompute the volume-weighted average entry and latch the one-shot flag.
	newQty := st.Quantity + fill.Quantity
	st.AvgEntryPrice = (st.Quantity*st.AvgEntryPrice + fill.Quantity*fill.Price) / newQty
	st.Quantity = newQty
	st.AveragingDownUsed = true
	e.invalidateFunds()

	e.record(ctx, &domain.TradeRecord{
		Symbol:    st.Symbol,
		Side:      domain.Buy,
		Price:     fill.Price,
		Quantity:  fill.Quantity,
		Timestamp: fill.Time,
	})
	e.notify.Send(ctx, domain.ChannelTrade,
		fmt.Sprintf("AVERAGE DOWN %s: %.6f @ %.4f, new avg entry %.4f",
			st.Symbol, fill.Quantity, fill.Price, st.AvgEntryPrice),
		true)
	e.logger.Info(ctx, "Averaged down", map[string]interface{}{
		"op": op, "symbol": st.Symbol, "quantity": fill.Quantity, "avgEntry": st.AvgEntryPrice,
	})
	return nil
}

// exit closes the full position: HOLDING -> FLAT.
func (e *Engine) exit(ctx context.Context, st *domain.InstrumentState, price float64, reason string, stopLoss bool) {
	op := "exit"

	if !st.Holding {
		e.logger.Debug(ctx, "Exit requested while flat, ignored", map[string]interface{}{
			"op": op, "symbol": st.Symbol,
		})
		return
	}

	var fill *ports.Fill
	err := e.retry.Do(ctx, "placeMarketSell", func(ctx context.Context) error {
		var opErr error
		fill, opErr = e.orders.PlaceMarketSell(ctx, st.Symbol, st.Quantity)
		return opErr
	})
	if err != nil {
		e.logger.Error(ctx, err, "Sell order failed, no state change", map[string]interface{}{
			"op": op, "symbol": st.Symbol, "quantity": st.Quantity, "stopLoss": stopLoss,
		})
		return
	}

	profitPct := (fill.Price - st.AvgEntryPrice) / st.AvgEntryPrice * 100
	st.CumulativeProfit += profitPct
	soldQty := st.Quantity
	st.Reset()
	e.invalidateFunds()

	e.record(ctx, &domain.TradeRecord{
		Symbol:            st.Symbol,
		Side:              domain.Sell,
		Price:             fill.Price,
		Quantity:          soldQty,
		Timestamp:         fill.Time,
		ProfitPct:         profitPct,
		StopLossTriggered: stopLoss,
	})

	label := "SELL"
	if stopLoss {
		label = "STOP-LOSS SELL"
		reason = "stop loss"
	}
	e.notify.Send(ctx, domain.ChannelTrade,
		fmt.Sprintf("%s %s: %.6f @ %.4f, realized %+.2f%% — %s",
			label, st.Symbol, soldQty, fill.Price, profitPct, reason),
		true)
	e.logger.Info(ctx, "Position closed", map[string]interface{}{
		"op": op, "symbol": st.Symbol, "price": fill.Price, "profitPct": profitPct, "stopLoss": stopLoss,
	})
}

// availableCash reads the quote-asset balance through the retry policy.
func (e *Engine) availableCash(ctx context.Context) (float64, error) {
	var cash float64
	err := e.retry.Do(ctx, "getBalance", func(ctx context.Context) error {
		var opErr error
		cash, opErr = e.funds.GetBalance(ctx, e.cfg.QuoteAsset)
		return opErr
	})
	return cash, err
}

// invalidateFunds expires a caching funds source after a fill so the next
// read reflects the spent or received cash.
func (e *Engine) invalidateFunds() {
	if inv, ok := e.funds.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

// record appends a trade to the repository. A persistence failure is logged
// and alerted but never unwinds the in-memory state, which is authoritative.
func (e *Engine) record(ctx context.Context, rec *domain.TradeRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if _, err := e.repo.CreateTrade(ctx, rec); err != nil {
		e.logger.Error(ctx, err, "Failed to persist trade record", map[string]interface{}{
			"symbol": rec.Symbol, "side": string(rec.Side),
		})
		e.notify.Send(ctx, domain.ChannelError,
			fmt.Sprintf("trade log write failed for %s %s: %v", rec.Symbol, rec.Side, err), true)
	}
}
