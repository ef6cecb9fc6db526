// Package market standardizes the OHLCV payloads shared between data ingestion
// and the strategy/risk layers.
package market

import "time"

// Bar is one sampled interval of open/high/low/close/volume for an instrument.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Update is a feed event: one bar tagged with the instrument it belongs to.
type Update struct {
	Symbol string
	Bar    Bar
}

// Closes extracts the close series from a slice of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
