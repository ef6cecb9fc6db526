package strategy

import (
	"fmt"
	"math"

	"github.com/gamboaalejandro/trading-bot/internal/indicator"
	"github.com/gamboaalejandro/trading-bot/internal/market"
)

// MomentumConfig groups the tunable knobs of the momentum strategy.
type MomentumConfig struct {
	RSIPeriod     int
	FastMAPeriod  int
	SlowMAPeriod  int
	Oversold      float64
	Overbought    float64
	StopLossPct   float64 // distance below/above entry, e.g. 0.02
	TakeProfitPct float64 // distance above/below entry, e.g. 0.04
}

func (c *MomentumConfig) applyDefaults() {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.FastMAPeriod <= 0 {
		c.FastMAPeriod = 10
	}
	if c.SlowMAPeriod <= 0 {
		c.SlowMAPeriod = 30
	}
	if c.Oversold <= 0 {
		c.Oversold = 30
	}
	if c.Overbought <= 0 {
		c.Overbought = 70
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = 0.02
	}
	if c.TakeProfitPct <= 0 {
		c.TakeProfitPct = 0.04
	}
}

// crossState carries the previous fast/slow MA pair between evaluations so
// crossover detection stays a pure function of (state, current values).
type crossState struct {
	prevFast float64
	prevSlow float64
	primed   bool
}

type crossover int

const (
	crossNone crossover = iota
	crossBullish
	crossBearish
)

// momentumStep detects a crossover event against the previous MA pair and
// returns the advanced state. Kept free of receiver state so it can be tested
// in isolation.
func momentumStep(st crossState, fast, slow float64) (crossover, crossState) {
	next := crossState{prevFast: fast, prevSlow: slow, primed: true}
	if !st.primed {
		return crossNone, next
	}
	switch {
	case st.prevFast <= st.prevSlow && fast > slow:
		return crossBullish, next
	case st.prevFast >= st.prevSlow && fast < slow:
		return crossBearish, next
	default:
		return crossNone, next
	}
}

// Momentum trades MA crossovers confirmed by RSI. Each instrument owns its own
// instance; the crossover state advances once per evaluation.
type Momentum struct {
	symbol string
	cfg    MomentumConfig
	state  crossState
}

// NewMomentum builds a momentum strategy for one instrument.
func NewMomentum(symbol string, cfg MomentumConfig) *Momentum {
	cfg.applyDefaults()
	return &Momentum{symbol: symbol, cfg: cfg}
}

// Name returns the identifier for the strategy implementation.
func (m *Momentum) Name() string { return "Momentum-" + m.symbol }

// RequiredBars reports the minimum window the strategy needs before evaluating.
func (m *Momentum) RequiredBars() int {
	n := m.cfg.SlowMAPeriod
	if m.cfg.RSIPeriod > n {
		n = m.cfg.RSIPeriod
	}
	return n + 5
}

// Evaluate produces a Buy/Sell signal on a confirmed crossover, a Hold signal
// otherwise, and nil while any required indicator is still undefined.
func (m *Momentum) Evaluate(bars []market.Bar) *Signal {
	rsi, rsiOK := indicator.RSI(bars, m.cfg.RSIPeriod)
	fast, fastOK := indicator.SMA(bars, m.cfg.FastMAPeriod)
	slow, slowOK := indicator.SMA(bars, m.cfg.SlowMAPeriod)
	if !rsiOK || !fastOK || !slowOK || slow == 0 {
		return nil
	}

	cross, next := momentumStep(m.state, fast, slow)
	m.state = next

	price := bars[len(bars)-1].Close
	ts := bars[len(bars)-1].Time
	separation := math.Abs(fast-slow) / slow

	switch {
	case cross == crossBullish && rsi > m.cfg.Oversold:
		rsiFactor := clamp((rsi-m.cfg.Oversold)/50.0, 0, 1)
		maFactor := clamp(separation*100, 0, 0.5)
		return &Signal{
			Symbol:     m.symbol,
			Kind:       Buy,
			Confidence: clamp(0.5+rsiFactor*0.3+maFactor*0.2, 0, 1),
			EntryPrice: price,
			StopLoss:   price * (1 - m.cfg.StopLossPct),
			TakeProfit: price * (1 + m.cfg.TakeProfitPct),
			Reason:     fmt.Sprintf("bullish crossover rsi=%.1f sep=%.4f", rsi, separation),
			Ts:         ts,
		}
	case cross == crossBearish && rsi < m.cfg.Overbought:
		rsiFactor := clamp((m.cfg.Overbought-rsi)/50.0, 0, 1)
		maFactor := clamp(separation*100, 0, 0.5)
		return &Signal{
			Symbol:     m.symbol,
			Kind:       Sell,
			Confidence: clamp(0.5+rsiFactor*0.3+maFactor*0.2, 0, 1),
			EntryPrice: price,
			StopLoss:   price * (1 + m.cfg.StopLossPct),
			TakeProfit: price * (1 - m.cfg.TakeProfitPct),
			Reason:     fmt.Sprintf("bearish crossover rsi=%.1f sep=%.4f", rsi, separation),
			Ts:         ts,
		}
	}

	return &Signal{
		Symbol:     m.symbol,
		Kind:       Hold,
		EntryPrice: price,
		Reason:     "no crossover or rsi out of range",
		Ts:         ts,
	}
}

var _ Strategy = (*Momentum)(nil)
