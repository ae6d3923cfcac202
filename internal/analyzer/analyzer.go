package analyzer

import (
	"context"
	"fmt"
	"time"

	"autoCoinBot/internal/domain"
	"autoCoinBot/internal/ports"
)

// Config holds parameters for the signal analyzer.
type Config struct {
	RSIPeriod     int     // e.g., 12
	RSIOversold   float64 // e.g., 30.0
	RSIOverbought float64 // e.g., 70.0

	MACDFast   int // e.g., 12
	MACDSlow   int // e.g., 26
	MACDSignal int // e.g., 9

	BandPeriod int     // e.g., 20
	BandWidth  float64 // half-width in standard deviations, e.g., 1.5

	VolumePeriod int     // rolling average window for the liquidity guard
	VolumeFloor  float64 // minimum volume as a fraction of the rolling average

	// Extreme RSI readings strong enough to act on without corroboration.
	StrongRSIOversold   float64 // e.g., 20.0
	StrongRSIOverbought float64 // e.g., 80.0

	// Cooldown suppresses repeated same-direction signals within the window.
	Cooldown time.Duration
}

// Analyzer evaluates one instrument's bar history and classifies each bar as
// BUY, SELL or HOLD. Three indicators vote; a two-vote quorum (or one extreme
// RSI reading) produces an action, which the liquidity and cooldown guards can
// still suppress. Not safe for concurrent use; the scheduler loop is the sole
// caller.
type Analyzer struct {
	cfg    Config
	logger ports.Logger
	symbol string

	bars []*domain.Bar

	// Cooldown state: last emitted actionable signal.
	lastAction domain.Action
	lastAt     time.Time
}

// New creates a new Analyzer instance for one instrument.
func New(symbol string, cfg Config, logger ports.Logger) (*Analyzer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for analyzer")
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required for analyzer")
	}
	if cfg.RSIPeriod <= 0 || cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 || cfg.BandPeriod <= 0 || cfg.VolumePeriod <= 0 {
		return nil, fmt.Errorf("analyzer periods must be positive")
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		return nil, fmt.Errorf("MACD fast period must be less than slow period")
	}
	if cfg.RSIOverbought <= cfg.RSIOversold {
		return nil, fmt.Errorf("RSI overbought threshold must exceed oversold threshold")
	}
	if cfg.VolumeFloor <= 0 || cfg.VolumeFloor >= 1.0 {
		return nil, fmt.Errorf("volume floor must be between 0.0 and 1.0 (exclusive)")
	}
	if cfg.StrongRSIOversold <= 0 {
		cfg.StrongRSIOversold = 20.0
	}
	if cfg.StrongRSIOverbought <= 0 {
		cfg.StrongRSIOverbought = 80.0
	}
	return &Analyzer{cfg: cfg, logger: logger, symbol: symbol, lastAction: domain.ActionHold}, nil
}

// RequiredDataPoints returns the minimum number of bars needed before any
// evaluation can produce a non-HOLD signal. It is the max of all indicator
// lookbacks, plus one bar so the liquidity guard has history preceding the
// evaluated bar.
func (a *Analyzer) RequiredDataPoints() int {
	maxPeriod := a.cfg.RSIPeriod + 1 // RSI looks one step further back than its period
	if n := a.cfg.MACDSlow + a.cfg.MACDSignal; n > maxPeriod {
		maxPeriod = n
	}
	if a.cfg.BandPeriod > maxPeriod {
		maxPeriod = a.cfg.BandPeriod
	}
	if a.cfg.VolumePeriod > maxPeriod {
		maxPeriod = a.cfg.VolumePeriod
	}
	return maxPeriod + 1
}

// SetBars replaces the bar history used for evaluation.
func (a *Analyzer) SetBars(bars []*domain.Bar) {
	a.bars = bars
}

// EvaluateLatest evaluates the most recent bar.
func (a *Analyzer) EvaluateLatest(ctx context.Context) domain.Signal {
	return a.Evaluate(ctx, len(a.bars)-1)
}

// Evaluate classifies the bar at atIndex and commits the result: an emitted
// BUY or SELL starts the cooldown window. Only the trading path may call it;
// reporting uses PeekLatest.
func (a *Analyzer) Evaluate(ctx context.Context, atIndex int) domain.Signal {
	sig, bar := a.classify(ctx, atIndex)
	if bar == nil || sig.Action == domain.ActionHold {
		return sig
	}

	if a.inCooldown(sig.Action, bar) {
		a.logger.Debug(ctx, "Signal suppressed by cooldown", map[string]interface{}{
			"symbol": a.symbol, "action": sig.Action, "sinceLast": bar.CloseTime.Sub(a.lastAt).String(),
		})
		return domain.Signal{Action: domain.ActionHold, Reason: "cooldown", Indicators: sig.Indicators}
	}

	a.lastAction = sig.Action
	a.lastAt = bar.CloseTime
	a.logger.Info(ctx, "Actionable signal", map[string]interface{}{
		"symbol": a.symbol, "action": sig.Action, "reason": sig.Reason, "close": bar.Close,
	})
	return sig
}

// PeekLatest evaluates the most recent bar without committing anything: the
// cooldown window is consulted but never advanced, so a status report can
// render the current reading without consuming the signal the next tick
// would act on.
func (a *Analyzer) PeekLatest(ctx context.Context) domain.Signal {
	sig, bar := a.classify(ctx, len(a.bars)-1)
	if bar == nil || sig.Action == domain.ActionHold {
		return sig
	}
	if a.inCooldown(sig.Action, bar) {
		return domain.Signal{Action: domain.ActionHold, Reason: "cooldown", Indicators: sig.Indicators}
	}
	return sig
}

func (a *Analyzer) inCooldown(action domain.Action, bar *domain.Bar) bool {
	// The clock is bar close time so live and backtest agree.
	return action == a.lastAction && bar.CloseTime.Sub(a.lastAt) < a.cfg.Cooldown
}

// classify computes the indicator votes and guards for the bar at atIndex.
// It is side-effect free; indicator values are always attached to the
// returned signal so reports can show them even when a guard forces HOLD.
func (a *Analyzer) classify(ctx context.Context, atIndex int) (domain.Signal, *domain.Bar) {
	if atIndex < 0 || atIndex >= len(a.bars) {
		return domain.HoldSignal(""), nil
	}
	window := a.bars[:atIndex+1]
	if len(window) < a.RequiredDataPoints() {
		a.logger.Debug(ctx, "Not enough bar data for evaluation",
			map[string]interface{}{"symbol": a.symbol, "available": len(window), "required": a.RequiredDataPoints()})
		return domain.HoldSignal("insufficient history"), nil
	}

	bar := window[len(window)-1]
	closes := make([]float64, len(window))
	for i, b := range window {
		closes[i] = b.Close
	}

	rsi, err := calculateRSI(window, a.cfg.RSIPeriod)
	if err != nil {
		a.logger.Error(ctx, err, "Failed to calculate RSI", map[string]interface{}{"symbol": a.symbol})
		return domain.HoldSignal("indicator failure"), nil
	}
	spread, signalLine, err := calculateMACD(closes, a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal)
	if err != nil {
		a.logger.Error(ctx, err, "Failed to calculate MACD", map[string]interface{}{"symbol": a.symbol})
		return domain.HoldSignal("indicator failure"), nil
	}
	upper, lower, err := calculateBollinger(closes, a.cfg.BandPeriod, a.cfg.BandWidth)
	if err != nil {
		a.logger.Error(ctx, err, "Failed to calculate Bollinger band", map[string]interface{}{"symbol": a.symbol})
		return domain.HoldSignal("indicator failure"), nil
	}

	// Rolling average volume over the bars preceding the evaluated one.
	avgVolume := 0.0
	for i := len(window) - 1 - a.cfg.VolumePeriod; i < len(window)-1; i++ {
		avgVolume += window[i].Volume
	}
	avgVolume /= float64(a.cfg.VolumePeriod)

	snapshot := map[string]string{
		"rsi":        fmt.Sprintf("%.2f", rsi),
		"macd":       fmt.Sprintf("%.4f", spread),
		"macdSignal": fmt.Sprintf("%.4f", signalLine),
		"bandUpper":  fmt.Sprintf("%.4f", upper),
		"bandLower":  fmt.Sprintf("%.4f", lower),
		"close":      fmt.Sprintf("%.4f", bar.Close),
		"volume":     fmt.Sprintf("%.4f", bar.Volume),
		"avgVolume":  fmt.Sprintf("%.4f", avgVolume),
	}

	// Indicator votes.
	buyVotes, sellVotes := 0, 0
	if rsi <= a.cfg.RSIOversold {
		buyVotes++
	} else if rsi >= a.cfg.RSIOverbought {
		sellVotes++
	}
	if spread > signalLine {
		buyVotes++
	} else if spread < signalLine {
		sellVotes++
	}
	if bar.Close <= lower {
		buyVotes++
	} else if bar.Close >= upper {
		sellVotes++
	}
	snapshot["buyVotes"] = fmt.Sprintf("%d", buyVotes)
	snapshot["sellVotes"] = fmt.Sprintf("%d", sellVotes)

	action := domain.ActionHold
	reason := "no quorum"
	switch {
	case buyVotes >= 2 && buyVotes > sellVotes:
		action = domain.ActionBuy
		reason = fmt.Sprintf("buy quorum %d/3", buyVotes)
	case sellVotes >= 2 && sellVotes > buyVotes:
		action = domain.ActionSell
		reason = fmt.Sprintf("sell quorum %d/3", sellVotes)
	case rsi <= a.cfg.StrongRSIOversold:
		action = domain.ActionBuy
		reason = fmt.Sprintf("extreme RSI %.2f", rsi)
	case rsi >= a.cfg.StrongRSIOverbought:
		action = domain.ActionSell
		reason = fmt.Sprintf("extreme RSI %.2f", rsi)
	}

	// Liquidity guard: a thin bar is not trustworthy in either direction.
	if bar.Volume < a.cfg.VolumeFloor*avgVolume {
		if action != domain.ActionHold {
			a.logger.Info(ctx, "Signal suppressed by liquidity guard", map[string]interface{}{
				"symbol": a.symbol, "action": action, "volume": bar.Volume, "avgVolume": avgVolume,
			})
		}
		return domain.Signal{Action: domain.ActionHold, Reason: "thin liquidity", Indicators: snapshot}, bar
	}

	return domain.Signal{Action: action, Reason: reason, Indicators: snapshot}, bar
}
