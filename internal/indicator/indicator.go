// Package indicator implements the technical indicators consumed by the
// strategy and risk layers. Every function operates over a bounded window of
// bars and reports ok=false while the window has not filled, so callers can
// fail closed instead of acting on partial data.
package indicator

import (
	"math"

	"github.com/gamboaalejandro/trading-bot/internal/market"
)

// SMA returns the arithmetic mean of the last period closes.
func SMA(bars []market.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}
	var sum float64
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close
	}
	return sum / float64(period), true
}

// RSI returns the Relative Strength Index over the last period deltas using a
// rolling mean of gains and losses. It needs period+1 bars. Flat windows
// (no gains, no losses) resolve to 50; loss-free windows resolve to 100.
// A defined result is always within [0, 100].
func RSI(bars []market.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	window := bars[len(bars)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		d := window[i].Close - window[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// Bollinger returns the middle, upper, and lower bands over the last period
// closes: mid = SMA, upper/lower = mid ± k times the sample standard deviation.
func Bollinger(bars []market.Bar, period int, k float64) (mid, upper, lower float64, ok bool) {
	if period <= 1 || len(bars) < period {
		return 0, 0, 0, false
	}
	window := bars[len(bars)-period:]
	var sum float64
	for _, b := range window {
		sum += b.Close
	}
	mean := sum / float64(period)

	var sumSq float64
	for _, b := range window {
		d := b.Close - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(period-1))

	return mean, mean + k*std, mean - k*std, true
}

// ATR returns the rolling mean of the true range over the last period bars.
// True range needs a previous close, so period+1 bars are required. Results
// that are non-positive or NaN are reported as undefined.
func ATR(bars []market.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	window := bars[len(bars)-period-1:]
	var sum float64
	for i := 1; i < len(window); i++ {
		sum += trueRange(window[i], window[i-1].Close)
	}
	atr := sum / float64(period)
	if math.IsNaN(atr) || atr <= 0 {
		return 0, false
	}
	return atr, true
}

func trueRange(b market.Bar, prevClose float64) float64 {
	tr := b.High - b.Low
	if d := math.Abs(b.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(b.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}
