package risk

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamboaalejandro/trading-bot/internal/market"
)

func testBars(n int, close, rng float64) []market.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, n)
	for i := range out {
		out[i] = market.Bar{
			Time:  start.Add(time.Duration(i) * time.Minute),
			Open:  close,
			High:  close + rng/2,
			Low:   close - rng/2,
			Close: close,
		}
	}
	return out
}

func TestSafeSizeCircuitBreaker(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	e.UpdateDailyPnL(-501)

	// Balance 10000 with a 5% drawdown cap trips at -500.
	res := e.SafeSize(10000, 100, 95, 0.55, 2)
	if !res.Rejected || res.Reason != ReasonCircuitBreaker {
		t.Fatalf("result = %+v, want circuit breaker rejection", res)
	}

	e.UpdateDailyPnL(-499)
	if res := e.SafeSize(10000, 100, 95, 0.55, 2); res.Rejected {
		t.Fatalf("result = %+v, want approval under the drawdown limit", res)
	}
}

func TestSafeSizeZeroReward(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	res := e.SafeSize(10000, 100, 95, 0.55, 0)
	if !res.Rejected || res.Reason != ReasonZeroReward {
		t.Fatalf("result = %+v, want zero-reward rejection", res)
	}
}

func TestSafeSizeZeroDistance(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	res := e.SafeSize(10000, 100, 100, 0.55, 2)
	if !res.Rejected || res.Reason != ReasonZeroDistance {
		t.Fatalf("result = %+v, want zero-distance rejection", res)
	}
}

func TestSafeSizeHardCapBeatsKelly(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())

	// Fractional Kelly at wr=0.9, rr=3 is ~0.217, far above the 2% cap, so
	// risk is 10000*0.02 = 200 over a distance of 10.
	res := e.SafeSize(10000, 100, 90, 0.9, 3)
	if res.Rejected {
		t.Fatalf("unexpected rejection: %+v", res)
	}
	if math.Abs(res.Qty-20) > 1e-9 {
		t.Fatalf("qty = %v, want 20", res.Qty)
	}
}

func TestSafeSizeNegativeKellyFloorsAtZero(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())

	// wr=0.3, rr=1 gives a negative Kelly, so the size collapses to zero and
	// fails the notional floor.
	res := e.SafeSize(10000, 100, 95, 0.3, 1)
	if !res.Rejected || res.Reason != ReasonBelowNotional {
		t.Fatalf("result = %+v, want below-notional rejection", res)
	}
}

func TestSafeSizeNotionalFloor(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())

	// Balance 1 risks 0.02 over a distance of 1: qty 0.02, notional 2 < 6.
	res := e.SafeSize(1, 100, 99, 0.55, 2)
	if !res.Rejected || res.Reason != ReasonBelowNotional {
		t.Fatalf("result = %+v, want below-notional rejection", res)
	}
}

func TestSafeSizeMonotonicInBalance(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	small := e.SafeSize(10000, 100, 95, 0.55, 2)
	large := e.SafeSize(20000, 100, 95, 0.55, 2)
	if small.Rejected || large.Rejected {
		t.Fatalf("unexpected rejection: %+v / %+v", small, large)
	}
	if large.Qty <= small.Qty {
		t.Fatalf("qty did not grow with balance: %v then %v", small.Qty, large.Qty)
	}
}

func TestSafeSizeMonotonicInWinRate(t *testing.T) {
	// Lift the hard cap so the raw Kelly fraction drives the size.
	e := NewEngine(Config{MaxRiskPerTrade: 1.0}, zerolog.Nop())
	prev := 0.0
	for _, wr := range []float64{0.4, 0.5, 0.6, 0.7, 0.8} {
		res := e.SafeSize(10000, 100, 95, wr, 2)
		if res.Rejected {
			t.Fatalf("unexpected rejection at wr=%v: %+v", wr, res)
		}
		if res.Qty < prev {
			t.Fatalf("qty shrank from %v to %v as win rate rose to %v", prev, res.Qty, wr)
		}
		prev = res.Qty
	}
}

func TestDynamicStopFromATR(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	bars := testBars(20, 100, 2)

	long := e.DynamicStop(bars, 100, Long)
	if long.Fallback {
		t.Fatalf("expected atr stop, got fallback: %+v", long)
	}
	// ATR 2 with multiplier 2 puts the long stop 4 below price.
	if math.Abs(long.Price-96) > 1e-9 {
		t.Fatalf("long stop = %v, want 96", long.Price)
	}

	short := e.DynamicStop(bars, 100, Short)
	if math.Abs(short.Price-104) > 1e-9 {
		t.Fatalf("short stop = %v, want 104", short.Price)
	}
}

func TestDynamicStopFallback(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())
	bars := testBars(3, 100, 2) // far fewer than the ATR period

	long := e.DynamicStop(bars, 100, Long)
	if !long.Fallback || math.Abs(long.Price-95) > 1e-9 {
		t.Fatalf("long fallback = %+v, want flagged stop at 95", long)
	}
	short := e.DynamicStop(bars, 100, Short)
	if !short.Fallback || math.Abs(short.Price-105) > 1e-9 {
		t.Fatalf("short fallback = %+v, want flagged stop at 105", short)
	}
}

func TestCheckVolatility(t *testing.T) {
	e := NewEngine(Config{}, zerolog.Nop())

	calm, trPct := e.CheckVolatility(testBars(5, 100, 1), 0)
	if !calm || math.Abs(trPct-0.01) > 1e-9 {
		t.Fatalf("calm bar = %v %v, want pass at 1%%", calm, trPct)
	}

	if wild, _ := e.CheckVolatility(testBars(5, 100, 20), 0); wild {
		t.Fatalf("expected 20%% range to be blocked")
	}

	if ok, _ := e.CheckVolatility(nil, 0); ok {
		t.Fatalf("expected empty window to be blocked")
	}
}
