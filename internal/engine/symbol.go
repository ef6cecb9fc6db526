package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamboaalejandro/trading-bot/internal/config"
	"github.com/gamboaalejandro/trading-bot/internal/market"
	"github.com/gamboaalejandro/trading-bot/internal/strategy"
)

// bufferHeadroom is how many bars a symbol buffer keeps beyond the largest
// strategy lookback.
const bufferHeadroom = 50

// symbolState owns everything the engine tracks per enabled instrument.
type symbolState struct {
	policy   config.SymbolPolicy
	buffer   *market.BarBuffer
	combiner *strategy.Combiner

	mu          sync.Mutex
	tradeDay    time.Time
	tradesToday int
}

// newSymbolState wires the strategies named by the policy into a combiner and
// sizes the bar buffer to their largest lookback.
func newSymbolState(symbol string, policy config.SymbolPolicy, profile config.Profile, log zerolog.Logger) (*symbolState, error) {
	combiner, err := strategy.NewCombiner(profile.CombinationMethod, profile.MinConfidence, log)
	if err != nil {
		return nil, err
	}

	switch policy.Strategy {
	case config.StrategyMomentum:
		combiner.Register(strategy.NewMomentum(symbol, strategy.MomentumConfig{
			RSIPeriod:     policy.Params.RSIPeriod,
			FastMAPeriod:  policy.Params.FastMA,
			SlowMAPeriod:  policy.Params.SlowMA,
			Oversold:      policy.Params.Oversold,
			Overbought:    policy.Params.Overbought,
			StopLossPct:   policy.Params.StopLossPct,
			TakeProfitPct: policy.Params.TakeProfitPct,
		}))
	case config.StrategyMeanReversion:
		combiner.Register(strategy.NewMeanReversion(symbol, strategy.MeanReversionConfig{
			BBPeriod:   policy.Params.BBPeriod,
			BBStdDev:   policy.Params.BBStdDev,
			RSIPeriod:  policy.Params.RSIPeriod,
			Oversold:   policy.Params.Oversold,
			Overbought: policy.Params.Overbought,
		}))
	default:
		return nil, fmt.Errorf("symbol %s: unknown strategy %q", symbol, policy.Strategy)
	}

	return &symbolState{
		policy:   policy,
		buffer:   market.NewBarBuffer(combiner.RequiredBars() + bufferHeadroom),
		combiner: combiner,
	}, nil
}

// tradeAllowed reports whether the per-symbol daily trade cap leaves room for
// another entry. The counter resets when the calendar day changes.
func (s *symbolState) tradeAllowed(now time.Time) bool {
	if s.policy.MaxDailyTrades <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(now)
	return s.tradesToday < s.policy.MaxDailyTrades
}

// recordTrade counts one entry against today's cap.
func (s *symbolState) recordTrade(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(now)
	s.tradesToday++
}

func (s *symbolState) rolloverLocked(now time.Time) {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if !day.Equal(s.tradeDay) {
		s.tradeDay = day
		s.tradesToday = 0
	}
}
