package analyzer

import (
	"fmt"
	"math"

	"autoCoinBot/internal/domain"
)

// calculateRSI calculates the Relative Strength Index (RSI) using Wilder's smoothing method.
func calculateRSI(bars []*domain.Bar, period int) (float64, error) {
	if len(bars) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(bars), period)
	}

	// Calculate price changes
	changes := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		changes = append(changes, change)
	}

	// Calculate initial average gain and loss
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Calculate smoothed average gain and loss using Wilder's smoothing
	for i := period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(period-1) + changes[i]) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - changes[i]) / float64(period)
		}
	}

	// Handle edge cases
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // Neutral if no change
		}
		return 100, nil // Max RSI if only gains
	}

	// Calculate RSI
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	// Ensure RSI is within bounds
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}

	return rsi, nil
}

// calculateSMA calculates the Simple Moving Average over the last 'period' values.
func calculateSMA(values []float64, period int) (float64, error) {
	if len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(values), period)
	}

	total := 0.0
	for i := len(values) - period; i < len(values); i++ {
		total += values[i]
	}
	return total / float64(period), nil
}

// calculateEMA calculates the Exponential Moving Average over the value series.
// The first 'period' values seed the EMA as an SMA.
func calculateEMA(values []float64, period int) (float64, error) {
	if len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(values), period)
	}

	multiplier := 2.0 / float64(period+1)

	// Seed the EMA with the SMA of the first 'period' values
	seed, err := calculateSMA(values[:period], period)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate SMA seed for EMA: %w", err)
	}
	ema := seed

	// Apply EMA formula for the rest of the values
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
	}

	return ema, nil
}

// calculateMACD computes the momentum spread (fast EMA minus slow EMA) and its
// signal line (EMA of the spread over the signal period).
func calculateMACD(closes []float64, fast, slow, signal int) (spread, signalLine float64, err error) {
	if fast >= slow {
		return 0, 0, fmt.Errorf("MACD fast period %d must be less than slow period %d", fast, slow)
	}
	required := slow + signal
	if len(closes) < required {
		return 0, 0, fmt.Errorf("not enough data (%d) to calculate MACD(%d,%d,%d), need %d", len(closes), fast, slow, signal, required)
	}

	// Build the spread series over the most recent windows so the signal line
	// has a full signal-period history to smooth over.
	spreads := make([]float64, 0, signal)
	for i := len(closes) - signal; i < len(closes); i++ {
		fastEMA, err := calculateEMA(closes[:i+1], fast)
		if err != nil {
			return 0, 0, err
		}
		slowEMA, err := calculateEMA(closes[:i+1], slow)
		if err != nil {
			return 0, 0, err
		}
		spreads = append(spreads, fastEMA-slowEMA)
	}

	signalLine, err = calculateEMA(spreads, signal)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to calculate MACD signal line: %w", err)
	}
	return spreads[len(spreads)-1], signalLine, nil
}

// calculateBollinger computes the Bollinger band around the SMA of the last
// 'period' closes, with the half-width given in standard deviations.
func calculateBollinger(closes []float64, period int, width float64) (upper, lower float64, err error) {
	sma, err := calculateSMA(closes, period)
	if err != nil {
		return 0, 0, err
	}

	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - sma
		variance += d * d
	}
	variance /= float64(period)
	stdDev := math.Sqrt(variance)

	return sma + width*stdDev, sma - width*stdDev, nil
}
