package strategy

import (
	"fmt"

	"github.com/gamboaalejandro/trading-bot/internal/indicator"
	"github.com/gamboaalejandro/trading-bot/internal/market"
)

// MeanReversionConfig groups the tunable knobs of the mean reversion strategy.
type MeanReversionConfig struct {
	BBPeriod   int
	BBStdDev   float64
	RSIPeriod  int
	Oversold   float64
	Overbought float64
}

func (c *MeanReversionConfig) applyDefaults() {
	if c.BBPeriod <= 0 {
		c.BBPeriod = 20
	}
	if c.BBStdDev <= 0 {
		c.BBStdDev = 2.0
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.Oversold <= 0 {
		c.Oversold = 30
	}
	if c.Overbought <= 0 {
		c.Overbought = 70
	}
}

// MeanReversion trades Bollinger band extremes confirmed by RSI, targeting a
// reversion to the middle band.
type MeanReversion struct {
	symbol string
	cfg    MeanReversionConfig
}

// NewMeanReversion builds a mean reversion strategy for one instrument.
func NewMeanReversion(symbol string, cfg MeanReversionConfig) *MeanReversion {
	cfg.applyDefaults()
	return &MeanReversion{symbol: symbol, cfg: cfg}
}

// Name returns the identifier for the strategy implementation.
func (m *MeanReversion) Name() string { return "MeanReversion-" + m.symbol }

// RequiredBars reports the minimum window the strategy needs before evaluating.
func (m *MeanReversion) RequiredBars() int {
	n := m.cfg.BBPeriod
	if m.cfg.RSIPeriod > n {
		n = m.cfg.RSIPeriod
	}
	return n + 5
}

// Evaluate produces a Buy near the lower band with oversold RSI, a Sell near
// the upper band with overbought RSI, and a Hold otherwise. A degenerate
// zero-width band yields Hold rather than dividing by it.
func (m *MeanReversion) Evaluate(bars []market.Bar) *Signal {
	rsi, rsiOK := indicator.RSI(bars, m.cfg.RSIPeriod)
	mid, upper, lower, bbOK := indicator.Bollinger(bars, m.cfg.BBPeriod, m.cfg.BBStdDev)
	if !rsiOK || !bbOK {
		return nil
	}

	price := bars[len(bars)-1].Close
	ts := bars[len(bars)-1].Time

	width := upper - lower
	if width == 0 {
		return &Signal{
			Symbol:     m.symbol,
			Kind:       Hold,
			EntryPrice: price,
			Reason:     "zero band width",
			Ts:         ts,
		}
	}

	// 0 at the lower band, 1 at the upper band.
	position := (price - lower) / width

	switch {
	case position <= 0.1 && rsi < m.cfg.Oversold:
		bandFactor := clamp(1.0-position/0.1, 0, 1)
		rsiFactor := clamp(1.0-rsi/m.cfg.Oversold, 0, 1)
		return &Signal{
			Symbol:     m.symbol,
			Kind:       Buy,
			Confidence: clamp(0.5+bandFactor*0.3+rsiFactor*0.2, 0, 1),
			EntryPrice: price,
			StopLoss:   lower * 0.99,
			TakeProfit: mid,
			Reason:     fmt.Sprintf("lower band touch pos=%.3f rsi=%.1f", position, rsi),
			Ts:         ts,
		}
	case position >= 0.9 && rsi > m.cfg.Overbought:
		bandFactor := clamp((position-0.9)/0.1, 0, 1)
		rsiFactor := clamp((rsi-m.cfg.Overbought)/(100-m.cfg.Overbought), 0, 1)
		return &Signal{
			Symbol:     m.symbol,
			Kind:       Sell,
			Confidence: clamp(0.5+bandFactor*0.3+rsiFactor*0.2, 0, 1),
			EntryPrice: price,
			StopLoss:   upper * 1.01,
			TakeProfit: mid,
			Reason:     fmt.Sprintf("upper band touch pos=%.3f rsi=%.1f", position, rsi),
			Ts:         ts,
		}
	}

	return &Signal{
		Symbol:     m.symbol,
		Kind:       Hold,
		EntryPrice: price,
		Reason:     fmt.Sprintf("price in middle range pos=%.3f", position),
		Ts:         ts,
	}
}

var _ Strategy = (*MeanReversion)(nil)
