// Package risk encodes guard-rails for how much size the engine may take on:
// fractional Kelly sizing under hard caps, a daily-loss circuit breaker,
// ATR-based stop placement, and a single-bar volatility gate.
package risk

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gamboaalejandro/trading-bot/internal/indicator"
	"github.com/gamboaalejandro/trading-bot/internal/market"
)

// Config holds the immutable risk policy applied to every trade.
type Config struct {
	MaxRiskPerTrade  float64 `yaml:"max_risk_per_trade"` // hard cap over Kelly, e.g. 0.02
	MaxDailyDrawdown float64 `yaml:"max_daily_drawdown"` // kill switch threshold, e.g. 0.05
	KellyFraction    float64 `yaml:"kelly_fraction"`     // full Kelly is too volatile, e.g. 0.25
	MinNotional      float64 `yaml:"min_notional"`       // exchange dust floor in quote currency
	ATRPeriod        int     `yaml:"atr_period"`
	ATRMultiplier    float64 `yaml:"atr_multiplier"`
	MaxVolatility    float64 `yaml:"max_volatility"` // last-bar (high-low)/close ceiling
}

// ApplyDefaults fills unset fields with the standard policy values.
func (c *Config) ApplyDefaults() {
	if c.MaxRiskPerTrade <= 0 {
		c.MaxRiskPerTrade = 0.02
	}
	if c.MaxDailyDrawdown <= 0 {
		c.MaxDailyDrawdown = 0.05
	}
	if c.KellyFraction <= 0 {
		c.KellyFraction = 0.25
	}
	if c.MinNotional <= 0 {
		c.MinNotional = 6.0
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.ATRMultiplier <= 0 {
		c.ATRMultiplier = 2.0
	}
	if c.MaxVolatility <= 0 {
		c.MaxVolatility = 0.05
	}
}

// Refusal reasons surfaced by SafeSize. These are policy decisions, not
// system faults, and are reported as values rather than errors.
const (
	ReasonCircuitBreaker = "daily loss limit reached"
	ReasonZeroReward     = "reward ratio is zero"
	ReasonZeroDistance   = "entry equals stop loss"
	ReasonBelowNotional  = "notional below exchange minimum"
)

// SizeResult is the outcome of a position sizing request.
type SizeResult struct {
	Qty      float64
	Rejected bool
	Reason   string
}

func refuse(reason string) SizeResult {
	return SizeResult{Rejected: true, Reason: reason}
}

// StopResult is the outcome of a dynamic stop computation. Fallback marks the
// fixed-percentage path taken when ATR is unavailable or invalid.
type StopResult struct {
	Price    float64
	Fallback bool
	Reason   string
}

// fallbackStopPct is the fixed stop distance used when ATR is undefined.
const fallbackStopPct = 0.05

// Side distinguishes position direction for stop placement.
type Side string

const (
	// Long marks a position that profits when price rises.
	Long Side = "long"
	// Short marks a position that profits when price falls.
	Short Side = "short"
)

// Engine computes per-trade sizing and stops. The orchestrator feeds it the
// current daily realized P&L so the circuit breaker sees fresh numbers.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	dailyPnL float64
}

// NewEngine builds a risk engine with defaults applied to the config.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	cfg.ApplyDefaults()
	return &Engine{cfg: cfg, log: log}
}

// Config returns the active policy.
func (e *Engine) Config() Config { return e.cfg }

// UpdateDailyPnL refreshes the realized P&L the circuit breaker consults.
func (e *Engine) UpdateDailyPnL(pnl float64) {
	e.mu.Lock()
	e.dailyPnL = pnl
	e.mu.Unlock()
}

func (e *Engine) currentDailyPnL() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailyPnL
}

// SafeSize computes a position size in base currency combining fractional
// Kelly with the hard per-trade cap. The daily-loss circuit breaker runs
// first and short-circuits everything else. Deterministic and side-effect
// free apart from logging.
func (e *Engine) SafeSize(balance, entry, stop, winRate, rewardRatio float64) SizeResult {
	maxDailyLoss := balance * e.cfg.MaxDailyDrawdown
	if daily := e.currentDailyPnL(); daily <= -maxDailyLoss {
		e.log.Warn().
			Float64("daily_pnl", daily).Float64("limit", -maxDailyLoss).
			Msg("kill switch active, trading halted for the day")
		return refuse(ReasonCircuitBreaker)
	}

	if rewardRatio == 0 {
		e.log.Warn().Msg("reward ratio is zero, cannot size position")
		return refuse(ReasonZeroReward)
	}

	kelly := winRate - (1-winRate)/rewardRatio
	kelly = math.Max(0, kelly) * e.cfg.KellyFraction

	riskPct := math.Min(kelly, e.cfg.MaxRiskPerTrade)

	distance := math.Abs(entry - stop)
	if distance == 0 {
		e.log.Warn().Float64("entry", entry).Msg("entry equals stop loss, zero risk distance")
		return refuse(ReasonZeroDistance)
	}

	riskAmount := balance * riskPct
	qty := riskAmount / distance

	if notional := qty * entry; notional < e.cfg.MinNotional {
		e.log.Warn().
			Float64("notional", notional).Float64("min", e.cfg.MinNotional).
			Msg("order rejected below minimum notional")
		return refuse(ReasonBelowNotional)
	}

	e.log.Debug().
		Float64("kelly", kelly).Float64("risk_pct", riskPct).
		Float64("risk_amount", riskAmount).Float64("qty", qty).
		Msg("position size approved")
	return SizeResult{Qty: qty}
}

// DynamicStop places a stop ATRMultiplier true ranges away from price, below
// for longs and above for shorts. When too few bars exist or ATR is invalid
// it falls back to a fixed percentage offset, explicitly flagged and logged.
func (e *Engine) DynamicStop(bars []market.Bar, price float64, side Side) StopResult {
	atr, ok := indicator.ATR(bars, e.cfg.ATRPeriod)
	if !ok {
		stop := price * (1 - fallbackStopPct)
		if side == Short {
			stop = price * (1 + fallbackStopPct)
		}
		e.log.Warn().
			Int("bars", len(bars)).Int("atr_period", e.cfg.ATRPeriod).
			Float64("stop", stop).
			Msg("atr undefined, using fixed-percentage stop fallback")
		return StopResult{Price: stop, Fallback: true, Reason: "atr undefined"}
	}

	stop := price - atr*e.cfg.ATRMultiplier
	if side == Short {
		stop = price + atr*e.cfg.ATRMultiplier
	}
	e.log.Debug().
		Float64("atr", atr).Float64("stop", stop).Str("side", string(side)).
		Msg("atr stop computed")
	return StopResult{Price: stop}
}

// CheckVolatility gates trading on the most recent bar only: a flash move
// wider than the threshold as a fraction of close blocks the trade attempt.
// Pass threshold 0 to use the configured ceiling.
func (e *Engine) CheckVolatility(bars []market.Bar, threshold float64) (bool, float64) {
	if threshold <= 0 {
		threshold = e.cfg.MaxVolatility
	}
	if len(bars) == 0 {
		e.log.Warn().Msg("cannot validate volatility without bars")
		return false, 0
	}
	last := bars[len(bars)-1]
	if last.Close == 0 {
		return false, 0
	}
	trPct := (last.High - last.Low) / last.Close
	if trPct > threshold {
		e.log.Warn().
			Float64("range_pct", trPct).Float64("threshold", threshold).
			Msg("market too volatile, trade blocked")
		return false, trPct
	}
	return true, trPct
}
