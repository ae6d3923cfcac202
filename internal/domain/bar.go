package domain

import "time"

// Bar represents a single OHLCV candlestick data point.
type Bar struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Instrument identifier
	Interval  string    // Bar interval (e.g., "5m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
	IsFinal   bool      // Whether this bar is the final one for the interval
}

// Tick is a single live market-data event: one trade for one instrument.
// A nil Tick received from a stream signals connection loss.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}
