package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpillora/backoff"

	"autoCoinBot/config"
	"autoCoinBot/internal/analytics"
	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/engine"
	"autoCoinBot/internal/notify"
	"autoCoinBot/internal/ports"
)

// flushInterval is how often the dispatcher's pending queue is retried.
const flushInterval = time.Minute

// HealthChecker verifies exchange connectivity at startup. The paper adapter
// has nothing to verify, so the dependency is optional.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PriceSink receives every observed tick price. The paper ledger implements
// it to fill simulated orders at current prices; live mode leaves it nil.
type PriceSink interface {
	SetPrice(symbol string, price float64)
}

// Deps are the collaborators of the trading service.
type Deps struct {
	Market     ports.MarketDataSource
	Engine     *engine.Engine
	Analyzers  map[string]ports.Analyzer
	Funds      ports.FundsSource
	TradeRepo  ports.TradeRepository
	StateRepo  ports.StateRepository
	Dispatcher *notify.Dispatcher
	Logger     ports.Logger

	Health HealthChecker // optional
	Prices PriceSink     // optional
}

// TradingService runs the single-threaded trading session: it consumes the
// live tick stream, drives the position engine, and interleaves maintenance
// work between ticks. All engine and dispatcher state is touched only from
// the loop goroutine.
type TradingService struct {
	cfg  *config.Config
	deps Deps

	lastStatus  time.Time
	lastRefresh time.Time
	lastReport  map[int]time.Time // report hour -> day it last fired
	lastPurge   time.Time
	lastFlush   time.Time

	now func() time.Time
}

// NewTradingService creates the service and validates its dependencies.
func NewTradingService(cfg *config.Config, deps Deps) (*TradingService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Market == nil || deps.Engine == nil || deps.Funds == nil ||
		deps.TradeRepo == nil || deps.StateRepo == nil || deps.Dispatcher == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if len(deps.Analyzers) == 0 {
		return nil, fmt.Errorf("at least one analyzer is required")
	}
	for _, symbol := range cfg.Symbols {
		if _, ok := deps.Analyzers[symbol]; !ok {
			return nil, fmt.Errorf("no analyzer configured for symbol %s", symbol)
		}
	}
	return &TradingService{
		cfg:        cfg,
		deps:       deps,
		lastReport: make(map[int]time.Time),
		now:        time.Now,
	}, nil
}

// Start runs the session until the context is canceled, a shutdown signal
// arrives, or the stream cannot be re-established. Startup failures are
// reported through the error channel before returning.
func (s *TradingService) Start(ctx context.Context) error {
	log := s.deps.Logger
	log.Info(ctx, "Starting trading service", map[string]interface{}{
		"symbols": s.cfg.Symbols, "dryRun": s.cfg.DryRun,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.initialize(ctx); err != nil {
		// One final alert before terminating; quota rejection is acceptable here.
		s.deps.Dispatcher.Send(ctx, domain.ChannelError, fmt.Sprintf("startup failed: %v", err), true)
		s.deps.Dispatcher.FlushPending(ctx)
		return err
	}

	err := s.run(ctx)

	s.persistStates(context.Background())
	s.deps.Dispatcher.FlushPending(context.Background())
	log.Info(ctx, "Trading service stopped")
	return err
}

// initialize verifies connectivity, restores persisted position state, and
// loads the initial bar history for every analyzer.
func (s *TradingService) initialize(ctx context.Context) error {
	op := "initialize"
	log := s.deps.Logger

	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(ctx); err != nil {
			return fmt.Errorf("%s: exchange connectivity check failed: %w", op, err)
		}
		log.Info(ctx, "Exchange connectivity verified")
	}

	if _, err := s.deps.Funds.GetBalance(ctx, s.cfg.QuoteAsset); err != nil {
		return fmt.Errorf("%s: initial balance query failed: %w", op, err)
	}

	states, err := s.deps.StateRepo.LoadStates(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to load persisted position state: %w", op, err)
	}
	for _, st := range states {
		if err := s.deps.Engine.RestoreState(st); err != nil {
			log.Warn(ctx, "Skipping persisted state", map[string]interface{}{
				"op": op, "symbol": st.Symbol, "error": err.Error(),
			})
			continue
		}
		if st.Holding {
			log.Info(ctx, "Restored open position", map[string]interface{}{
				"symbol": st.Symbol, "quantity": st.Quantity, "avgEntryPrice": st.AvgEntryPrice,
			})
		}
	}

	if err := s.refreshBars(ctx, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	s.lastStatus = now
	s.lastRefresh = now
	s.lastPurge = now
	s.lastFlush = now
	return nil
}

// run is the main loop: block on the next tick, process it, then let the
// maintenance tasks see the clock. A closed tick channel means the stream
// connection is lost and triggers a backoff resubscribe.
func (s *TradingService) run(ctx context.Context) error {
	log := s.deps.Logger

	stream, err := s.subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() { stream.Stop() }()

	maintenance := time.NewTicker(time.Second)
	defer maintenance.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "Stop requested, shutting down loop")
			return nil

		case tick, ok := <-stream.Ticks():
			if !ok {
				log.Warn(ctx, "Tick stream lost, resubscribing")
				stream.Stop()
				stream, err = s.resubscribe(ctx)
				if err != nil {
					return err
				}
				continue
			}
			if tick == nil {
				continue
			}
			s.handleTick(ctx, tick)

		case <-maintenance.C:
			s.runMaintenance(ctx)
		}
	}
}

// handleTick drives one instrument through the decision contract: evaluate
// the analyzer on its current bar history, then hand price and signal to the
// engine.
func (s *TradingService) handleTick(ctx context.Context, tick *domain.Tick) {
	analyzer, ok := s.deps.Analyzers[tick.Symbol]
	if !ok {
		s.deps.Logger.Debug(ctx, "Tick for untracked symbol", map[string]interface{}{"symbol": tick.Symbol})
		return
	}
	if s.deps.Prices != nil {
		s.deps.Prices.SetPrice(tick.Symbol, tick.Price)
	}

	sig := analyzer.EvaluateLatest(ctx)
	s.deps.Engine.OnTick(ctx, tick.Symbol, tick.Price, sig)
}

// subscribe opens the combined tick stream for all configured symbols.
func (s *TradingService) subscribe(ctx context.Context) (ports.TickStream, error) {
	stream, err := s.deps.Market.SubscribeTicks(ctx, s.cfg.Symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to tick stream: %w", err)
	}
	s.deps.Logger.Info(ctx, "Tick stream subscribed", map[string]interface{}{"symbols": s.cfg.Symbols})
	return stream, nil
}

// resubscribe re-establishes the stream after a connection loss, pausing with
// exponential backoff between attempts. Exhausting the attempt budget is
// fatal to the session.
func (s *TradingService) resubscribe(ctx context.Context) (ports.TickStream, error) {
	op := "resubscribe"
	log := s.deps.Logger

	b := &backoff.Backoff{
		Min:    s.cfg.ReconnectDelay,
		Max:    10 * s.cfg.ReconnectDelay,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		wait := b.Duration()
		log.Info(ctx, "Waiting before resubscribe", map[string]interface{}{
			"op": op, "attempt": attempt, "wait": wait.String(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		stream, err := s.deps.Market.SubscribeTicks(ctx, s.cfg.Symbols)
		if err == nil {
			log.Info(ctx, "Tick stream re-established", map[string]interface{}{"op": op, "attempt": attempt})
			return stream, nil
		}
		lastErr = err
		log.Error(ctx, err, "Resubscribe attempt failed", map[string]interface{}{
			"op": op, "attempt": attempt,
		})
	}

	s.deps.Dispatcher.Send(ctx, domain.ChannelError,
		fmt.Sprintf("tick stream lost and %d resubscribe attempts failed: %v", s.cfg.MaxReconnectAttempts, lastErr), true)
	return nil, fmt.Errorf("%s: exhausted %d attempts: %w", op, s.cfg.MaxReconnectAttempts, lastErr)
}

// runMaintenance fires any periodic task whose interval has elapsed. All
// tasks degrade to skipping the current cycle on failure.
func (s *TradingService) runMaintenance(ctx context.Context) {
	now := s.now()

	if now.Sub(s.lastRefresh) >= s.cfg.RefreshInterval {
		s.lastRefresh = now
		if err := s.refreshBars(ctx, false); err != nil {
			s.deps.Logger.Warn(ctx, "Bar refresh failed, keeping previous history", map[string]interface{}{"error": err.Error()})
		}
	}

	if now.Sub(s.lastStatus) >= s.cfg.StatusInterval {
		s.lastStatus = now
		s.reportStatus(ctx)
		s.persistStates(ctx)
	}

	for _, hour := range s.cfg.ReportHours {
		if now.Hour() != hour {
			continue
		}
		if last, ok := s.lastReport[hour]; ok && sameDay(last, now) {
			continue
		}
		s.lastReport[hour] = now
		s.reportDaily(ctx, now)
	}

	if now.Sub(s.lastPurge) >= 24*time.Hour {
		s.lastPurge = now
		s.purgeTrades(ctx, now)
	}

	if s.deps.Dispatcher.PendingCount() > 0 && now.Sub(s.lastFlush) >= flushInterval {
		s.lastFlush = now
		if sent := s.deps.Dispatcher.FlushPending(ctx); sent > 0 {
			s.deps.Logger.Info(ctx, "Flushed pending notifications", map[string]interface{}{"sent": sent})
		}
	}
}

// refreshBars reloads the bar history behind every analyzer. At startup a
// short load is fatal; during maintenance it only skips that instrument.
func (s *TradingService) refreshBars(ctx context.Context, strict bool) error {
	log := s.deps.Logger

	for symbol, analyzer := range s.deps.Analyzers {
		required := analyzer.RequiredDataPoints()
		bars, err := s.deps.Market.GetBars(ctx, symbol, s.cfg.BarInterval, required)
		if err != nil {
			if strict {
				return fmt.Errorf("failed to load bars for %s: %w", symbol, err)
			}
			log.Warn(ctx, "Bar load failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}
		if len(bars) < required {
			err := fmt.Errorf("insufficient history for %s: got %d bars, need %d", symbol, len(bars), required)
			if strict {
				return err
			}
			log.Warn(ctx, "Insufficient bar history", map[string]interface{}{
				"symbol": symbol, "got": len(bars), "need": required,
			})
			continue
		}
		analyzer.SetBars(bars)
	}
	log.Debug(ctx, "Bar history refreshed", map[string]interface{}{"interval": s.cfg.BarInterval})
	return nil
}

// reportStatus sends the periodic per-instrument status message.
func (s *TradingService) reportStatus(ctx context.Context) {
	cash, err := s.deps.Funds.GetBalance(ctx, s.cfg.QuoteAsset)
	if err != nil {
		s.deps.Logger.Warn(ctx, "Skipping status report, balance unavailable", map[string]interface{}{"error": err.Error()})
		return
	}

	statuses := make([]analytics.InstrumentStatus, 0, len(s.cfg.Symbols))
	for _, symbol := range s.cfg.Symbols {
		st := s.deps.Engine.State(symbol)
		if st == nil {
			continue
		}
		// Peek so the report never consumes a signal the next tick would act on.
		analyzer := s.deps.Analyzers[symbol]
		sig := analyzer.PeekLatest(ctx)

		price := 0.0
		if v, ok := parseIndicator(sig.Indicators, "close"); ok {
			price = v
		}
		statuses = append(statuses, analytics.InstrumentStatus{
			Symbol:           symbol,
			Price:            price,
			Quantity:         st.Quantity,
			AvgEntryPrice:    st.AvgEntryPrice,
			CumulativeProfit: st.CumulativeProfit,
			Holding:          st.Holding,
			Indicators:       sig.Indicators,
		})
	}

	body := analytics.StatusReport(statuses, cash, s.cfg.QuoteAsset)
	s.deps.Dispatcher.Send(ctx, domain.ChannelStatus, body, false)
}

// reportDaily sends the scheduled daily trade summary.
func (s *TradingService) reportDaily(ctx context.Context, now time.Time) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	records, err := s.deps.TradeRepo.FindSince(ctx, dayStart)
	if err != nil {
		s.deps.Logger.Warn(ctx, "Skipping daily report, trade query failed", map[string]interface{}{"error": err.Error()})
		return
	}
	body := analytics.DailyReport(now, records)
	s.deps.Dispatcher.Send(ctx, domain.ChannelReport, body, true)
}

// purgeTrades removes trade records past the retention window.
func (s *TradingService) purgeTrades(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.cfg.TradeRetention)
	removed, err := s.deps.TradeRepo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.deps.Logger.Warn(ctx, "Trade retention purge failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if removed > 0 {
		s.deps.Logger.Info(ctx, "Purged old trade records", map[string]interface{}{"removed": removed})
	}
}

// persistStates snapshots every instrument's position state to the store.
func (s *TradingService) persistStates(ctx context.Context) {
	for _, st := range s.deps.Engine.States() {
		if err := s.deps.StateRepo.SaveState(ctx, st); err != nil {
			s.deps.Logger.Warn(ctx, "Failed to persist instrument state", map[string]interface{}{
				"symbol": st.Symbol, "error": err.Error(),
			})
		}
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func parseIndicator(indicators map[string]string, key string) (float64, bool) {
	raw, ok := indicators[key]
	if !ok {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%f", &v); err != nil {
		return 0, false
	}
	return v, true
}
