package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gamboaalejandro/trading-bot/internal/market"
)

// Method selects how signals from multiple strategies are reconciled.
type Method string

const (
	// MethodConsensus requires more than half of the actionable signals to
	// agree on a direction, each above the minimum confidence.
	MethodConsensus Method = "consensus"
	// MethodMajority is an alias of MethodConsensus kept for configuration
	// compatibility; both apply the same >50% agreement test.
	MethodMajority Method = "majority"
	// MethodWeighted sums confidences per direction and requires a clear gap.
	MethodWeighted Method = "weighted"
	// MethodAny accepts the single highest-confidence signal above threshold.
	MethodAny Method = "any"
	// MethodFirstMatch accepts the first signal above threshold in
	// registration order.
	MethodFirstMatch Method = "first_match"
)

// weightedGap is the minimum difference between the buy and sell confidence
// sums before the weighted method yields a decision.
const weightedGap = 0.3

// ParseMethod validates a configured combination method name. Unknown names
// are a fatal configuration fault and refused up front.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodConsensus, MethodMajority, MethodWeighted, MethodAny, MethodFirstMatch:
		return m, nil
	default:
		return "", fmt.Errorf("unknown combination method %q", s)
	}
}

// SignalStats counts the outcomes one strategy has produced.
type SignalStats struct {
	Evaluations int
	Buys        int
	Sells       int
	Holds       int
}

// Combiner aggregates the signals of the strategies registered for one
// instrument into at most one actionable signal per evaluation.
type Combiner struct {
	method        Method
	minConfidence float64
	strategies    []Strategy
	stats         map[string]*SignalStats
	log           zerolog.Logger
}

// NewCombiner builds a combiner for the given method and confidence floor.
func NewCombiner(method string, minConfidence float64, log zerolog.Logger) (*Combiner, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	return &Combiner{
		method:        m,
		minConfidence: minConfidence,
		stats:         make(map[string]*SignalStats),
		log:           log,
	}, nil
}

// Register appends a strategy; evaluation order is registration order.
func (c *Combiner) Register(s Strategy) {
	c.strategies = append(c.strategies, s)
	c.stats[s.Name()] = &SignalStats{}
}

// RequiredBars reports the largest lookback any registered strategy needs.
func (c *Combiner) RequiredBars() int {
	n := 0
	for _, s := range c.strategies {
		if r := s.RequiredBars(); r > n {
			n = r
		}
	}
	return n
}

// Stats returns per-strategy signal counters keyed by strategy name.
func (c *Combiner) Stats() map[string]SignalStats {
	out := make(map[string]SignalStats, len(c.stats))
	for name, st := range c.stats {
		out[name] = *st
	}
	return out
}

// Combine evaluates every registered strategy and reconciles the results.
// It returns nil when no strategy produced an actionable signal, so callers
// can distinguish "no opinion" from an explicit Hold.
func (c *Combiner) Combine(bars []market.Bar) *Signal {
	var actionable []*Signal
	for _, s := range c.strategies {
		sig := s.Evaluate(bars)
		st := c.stats[s.Name()]
		st.Evaluations++
		if sig == nil {
			continue
		}
		switch sig.Kind {
		case Buy:
			st.Buys++
		case Sell:
			st.Sells++
		default:
			st.Holds++
		}
		if sig.Actionable() {
			actionable = append(actionable, sig)
		}
	}
	if len(actionable) == 0 {
		return nil
	}

	switch c.method {
	case MethodConsensus, MethodMajority:
		return c.agreement(actionable)
	case MethodWeighted:
		return c.weighted(actionable)
	case MethodAny:
		return c.highestConfidence(actionable)
	case MethodFirstMatch:
		return c.firstMatch(actionable)
	}
	return nil
}

func (c *Combiner) agreement(signals []*Signal) *Signal {
	buys := filter(signals, Buy, c.minConfidence)
	sells := filter(signals, Sell, c.minConfidence)
	half := float64(len(signals)) / 2

	switch {
	case float64(len(buys)) > half:
		return average(buys, Buy)
	case float64(len(sells)) > half:
		return average(sells, Sell)
	}
	c.log.Debug().
		Int("buy", len(buys)).Int("sell", len(sells)).Int("total", len(signals)).
		Msg("no agreement among strategies")
	return nil
}

func (c *Combiner) weighted(signals []*Signal) *Signal {
	buys := filter(signals, Buy, c.minConfidence)
	sells := filter(signals, Sell, c.minConfidence)

	var buyWeight, sellWeight float64
	for _, s := range buys {
		buyWeight += s.Confidence
	}
	for _, s := range sells {
		sellWeight += s.Confidence
	}

	diff := buyWeight - sellWeight
	if diff < 0 {
		diff = -diff
	}
	if diff < weightedGap {
		c.log.Debug().
			Float64("buy_weight", buyWeight).Float64("sell_weight", sellWeight).
			Msg("weighted sums too close")
		return nil
	}
	if buyWeight > sellWeight {
		return average(buys, Buy)
	}
	return average(sells, Sell)
}

func (c *Combiner) highestConfidence(signals []*Signal) *Signal {
	var best *Signal
	for _, s := range signals {
		if s.Confidence < c.minConfidence {
			continue
		}
		if best == nil || s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

func (c *Combiner) firstMatch(signals []*Signal) *Signal {
	for _, s := range signals {
		if s.Confidence >= c.minConfidence {
			return s
		}
	}
	return nil
}

func filter(signals []*Signal, kind Kind, minConfidence float64) []*Signal {
	var out []*Signal
	for _, s := range signals {
		if s.Kind == kind && s.Confidence >= minConfidence {
			out = append(out, s)
		}
	}
	return out
}

// average synthesizes one signal from a set of agreeing signals. Stops and
// targets are averaged over the signals that carry them.
func average(signals []*Signal, kind Kind) *Signal {
	if len(signals) == 0 {
		return nil
	}

	var conf, entry float64
	var stop, stopN, target, targetN float64
	names := make([]string, 0, len(signals))
	for _, s := range signals {
		conf += s.Confidence
		entry += s.EntryPrice
		if s.StopLoss != 0 {
			stop += s.StopLoss
			stopN++
		}
		if s.TakeProfit != 0 {
			target += s.TakeProfit
			targetN++
		}
		names = append(names, s.Reason)
	}

	n := float64(len(signals))
	out := &Signal{
		Symbol:     signals[0].Symbol,
		Kind:       kind,
		Confidence: conf / n,
		EntryPrice: entry / n,
		Reason:     "combined: " + strings.Join(names, "; "),
		Ts:         signals[0].Ts,
	}
	if stopN > 0 {
		out.StopLoss = stop / stopN
	}
	if targetN > 0 {
		out.TakeProfit = target / targetN
	}
	return out
}
