// Package strategy contains trading signal generation and combination logic.
package strategy

import (
	"time"

	"github.com/gamboaalejandro/trading-bot/internal/market"
)

// Kind enumerates the direction a signal expresses.
type Kind string

const (
	// Buy indicates a long bias.
	Buy Kind = "buy"
	// Sell indicates a short bias.
	Sell Kind = "sell"
	// Hold indicates an explicit flat opinion (distinct from no opinion at all,
	// which strategies express by returning nil).
	Hold Kind = "hold"
)

// Signal expresses a trading bias produced by a strategy implementation.
// Signals are created fresh on every evaluation and never mutated afterwards.
type Signal struct {
	Symbol     string
	Kind       Kind
	Confidence float64 // within [0,1]
	EntryPrice float64
	StopLoss   float64 // 0 when the strategy places no stop
	TakeProfit float64 // 0 when the strategy places no target
	Reason     string
	Ts         time.Time
}

// Actionable reports whether the signal expresses a tradable direction.
func (s *Signal) Actionable() bool {
	return s != nil && (s.Kind == Buy || s.Kind == Sell)
}

// Strategy defines behaviour shared by signal generators. Evaluate must fail
// closed: insufficient bars or undefined indicators yield nil or a Hold signal,
// never a panic or an error.
type Strategy interface {
	Name() string
	RequiredBars() int
	Evaluate(bars []market.Bar) *Signal
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
