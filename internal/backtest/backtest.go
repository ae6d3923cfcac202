package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"autoCoinBot/internal/adapters/paper"
	"autoCoinBot/internal/analytics"
	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/engine"
	"autoCoinBot/internal/ports"
	"autoCoinBot/internal/retry"
	"autoCoinBot/internal/risk"
)

// Config holds the parameters of one backtest run. The trading rules are the
// same ones the live session uses; only the boundaries are simulated.
type Config struct {
	Symbol     string
	QuoteAsset string
	StartCash  float64

	PerCoinCapFraction float64
	MinOrderAmount     float64
	StopLoss           float64
	AveragingFraction  float64
}

// Result holds the outcome of a backtest.
type Result struct {
	Metrics    *analytics.PerformanceMetrics
	Trades     []*domain.TradeRecord
	FinalCash  float64
	FinalState *domain.InstrumentState
}

// Run replays historical bars through the analyzer and the position engine,
// filling orders against a simulated ledger at bar close prices.
func Run(ctx context.Context, cfg Config, analyzer ports.Analyzer, bars []*domain.Bar, logger ports.Logger) (*Result, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	required := analyzer.RequiredDataPoints()
	if len(bars) <= required {
		return nil, fmt.Errorf("not enough bars for evaluation: got %d, need more than %d", len(bars), required)
	}

	ledger, err := paper.New(cfg.QuoteAsset, cfg.StartCash, logger)
	if err != nil {
		return nil, err
	}
	limits, err := risk.NewManager(risk.Config{
		StartCash:          cfg.StartCash,
		PerCoinCapFraction: cfg.PerCoinCapFraction,
		MaxPositions:       1,
		MinOrderAmount:     cfg.MinOrderAmount,
		StopLoss:           cfg.StopLoss,
		AveragingFraction:  cfg.AveragingFraction,
	})
	if err != nil {
		return nil, err
	}
	policy, err := retry.New(1, 0, logger)
	if err != nil {
		return nil, err
	}
	log := &tradeLog{}
	eng, err := engine.New(engine.Config{QuoteAsset: cfg.QuoteAsset}, []string{cfg.Symbol}, engine.Deps{
		Orders:   ledger,
		Funds:    ledger,
		Repo:     log,
		Limits:   limits,
		Retry:    policy,
		Notifier: noopNotifier{},
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	analyzer.SetBars(bars)
	for i := required; i < len(bars); i++ {
		bar := bars[i]
		ledger.SetPrice(cfg.Symbol, bar.Close)
		sig := analyzer.Evaluate(ctx, i)
		eng.OnTick(ctx, cfg.Symbol, bar.Close, sig)
	}

	cash, err := ledger.GetBalance(ctx, cfg.QuoteAsset)
	if err != nil {
		return nil, err
	}
	return &Result{
		Metrics:    analytics.AnalyzePerformance(log.records),
		Trades:     log.records,
		FinalCash:  cash,
		FinalState: eng.State(cfg.Symbol),
	}, nil
}

// Summary renders a human-readable run summary.
func (r *Result) Summary() string {
	var b strings.Builder
	m := r.Metrics
	fmt.Fprintf(&b, "trades: %d buys / %d sells\n", m.TotalBuys, m.TotalSells)
	fmt.Fprintf(&b, "realized: %+.2f%% (win rate %.0f%%, profit factor %.2f)\n",
		m.TotalProfitPct, m.WinRate*100, m.ProfitFactor)
	fmt.Fprintf(&b, "stop-loss exits: %d\n", m.StopLossExits)
	fmt.Fprintf(&b, "final cash: %.2f", r.FinalCash)
	if r.FinalState != nil && r.FinalState.Holding {
		fmt.Fprintf(&b, "\nopen position: %.6f @ %.4f", r.FinalState.Quantity, r.FinalState.AvgEntryPrice)
	}
	return b.String()
}

// tradeLog is the in-memory trade store used during replay.
type tradeLog struct {
	records []*domain.TradeRecord
}

func (l *tradeLog) CreateTrade(ctx context.Context, rec *domain.TradeRecord) (int64, error) {
	l.records = append(l.records, rec)
	rec.ID = int64(len(l.records))
	return rec.ID, nil
}

func (l *tradeLog) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error) {
	var out []*domain.TradeRecord
	for i := len(l.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if l.records[i].Symbol == symbol {
			out = append(out, l.records[i])
		}
	}
	return out, nil
}

func (l *tradeLog) FindSince(ctx context.Context, since time.Time) ([]*domain.TradeRecord, error) {
	var out []*domain.TradeRecord
	for _, rec := range l.records {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (l *tradeLog) TotalProfitPctBySymbol(ctx context.Context, symbol string) (float64, error) {
	var total float64
	for _, rec := range l.records {
		if rec.Symbol == symbol && rec.Side == domain.Sell {
			total += rec.ProfitPct
		}
	}
	return total, nil
}

func (l *tradeLog) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	kept := l.records[:0]
	var removed int64
	for _, rec := range l.records {
		if rec.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	l.records = kept
	return removed, nil
}

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, channel domain.ChannelClass, body string, important bool) bool {
	return true
}
