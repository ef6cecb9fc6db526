package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/gamboaalejandro/trading-bot/internal/market"
)

func barsFromCloses(closes ...float64) []market.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Time:  start.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c + 0.5,
			Low:   c - 0.5,
			Close: c,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	bars := barsFromCloses(1, 2, 3, 4, 5)
	got, ok := SMA(bars, 5)
	if !ok {
		t.Fatalf("expected sma defined with exactly period bars")
	}
	if got != 3 {
		t.Fatalf("sma = %v, want 3", got)
	}
	if _, ok := SMA(bars, 6); ok {
		t.Fatalf("expected sma undefined when window larger than data")
	}
	if _, ok := SMA(bars, 0); ok {
		t.Fatalf("expected sma undefined for non-positive period")
	}
}

func TestRSIFlatSeriesIsFifty(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	got, ok := RSI(bars, 14)
	if !ok {
		t.Fatalf("expected rsi defined with period+1 bars")
	}
	if got != 50 {
		t.Fatalf("flat series rsi = %v, want 50", got)
	}
}

func TestRSILossFreeSeriesIsHundred(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	got, ok := RSI(barsFromCloses(closes...), 14)
	if !ok {
		t.Fatalf("expected rsi defined")
	}
	if got != 100 {
		t.Fatalf("loss-free rsi = %v, want 100", got)
	}
}

func TestRSIStaysInRange(t *testing.T) {
	closes := []float64{50, 52, 51, 53, 49, 55, 54, 56, 52, 58, 57, 59, 55, 60, 58, 61}
	got, ok := RSI(barsFromCloses(closes...), 14)
	if !ok {
		t.Fatalf("expected rsi defined")
	}
	if got < 0 || got > 100 {
		t.Fatalf("rsi = %v outside [0,100]", got)
	}
}

func TestRSINeedsPeriodPlusOneBars(t *testing.T) {
	bars := barsFromCloses(1, 2, 3)
	if _, ok := RSI(bars, 3); ok {
		t.Fatalf("expected rsi undefined with only period bars")
	}
	if _, ok := RSI(bars, 2); !ok {
		t.Fatalf("expected rsi defined with period+1 bars")
	}
}

func TestBollinger(t *testing.T) {
	mid, upper, lower, ok := Bollinger(barsFromCloses(1, 2, 3, 4, 5), 5, 2)
	if !ok {
		t.Fatalf("expected bands defined")
	}
	if mid != 3 {
		t.Fatalf("mid = %v, want 3", mid)
	}
	std := math.Sqrt(2.5)
	if math.Abs(upper-(3+2*std)) > 1e-9 || math.Abs(lower-(3-2*std)) > 1e-9 {
		t.Fatalf("bands = [%v, %v], want mid +/- 2*sqrt(2.5)", lower, upper)
	}
}

func TestBollingerConstantSeriesCollapses(t *testing.T) {
	mid, upper, lower, ok := Bollinger(barsFromCloses(7, 7, 7, 7), 4, 2)
	if !ok {
		t.Fatalf("expected bands defined")
	}
	if mid != 7 || upper != 7 || lower != 7 {
		t.Fatalf("constant series bands = [%v %v %v], want all 7", lower, mid, upper)
	}
}

func TestATRConstantRange(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 10)
	got, ok := ATR(bars, 3)
	if !ok {
		t.Fatalf("expected atr defined with period+1 bars")
	}
	// high-low is 1 on every helper bar and closes never move.
	if math.Abs(got-1) > 1e-9 {
		t.Fatalf("atr = %v, want 1", got)
	}
}

func TestATRUndefinedCases(t *testing.T) {
	if _, ok := ATR(barsFromCloses(1, 2, 3), 3); ok {
		t.Fatalf("expected atr undefined without period+1 bars")
	}
	// Degenerate bars with zero range and no movement yield a non-positive atr.
	flat := []market.Bar{
		{Time: time.Unix(0, 0), High: 5, Low: 5, Close: 5},
		{Time: time.Unix(60, 0), High: 5, Low: 5, Close: 5},
		{Time: time.Unix(120, 0), High: 5, Low: 5, Close: 5},
	}
	if _, ok := ATR(flat, 2); ok {
		t.Fatalf("expected zero-range atr to be reported undefined")
	}
}
