// Package engine orchestrates the trading pipeline: it consumes bar updates
// per instrument, evaluates the configured strategies, runs every risk check
// in a fixed order, and executes approved trades against the exchange client.
// A second loop monitors open positions against their stops and targets.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamboaalejandro/trading-bot/internal/config"
	"github.com/gamboaalejandro/trading-bot/internal/exchange"
	"github.com/gamboaalejandro/trading-bot/internal/ledger"
	"github.com/gamboaalejandro/trading-bot/internal/market"
	"github.com/gamboaalejandro/trading-bot/internal/metrics"
	"github.com/gamboaalejandro/trading-bot/internal/risk"
	"github.com/gamboaalejandro/trading-bot/internal/strategy"
)

// Exit reasons recorded when the monitor closes a position.
const (
	reasonTakeProfit = "take_profit"
	reasonStopLoss   = "stop_loss"
	reasonShutdown   = "shutdown"
)

// priceMarker is implemented by execution clients that accept engine-fed
// price marks (the paper client does, a live client would not).
type priceMarker interface {
	MarkPrice(symbol string, price float64)
}

// Engine drives the full decision pipeline for every enabled instrument.
type Engine struct {
	cfg      *config.Config
	log      zerolog.Logger
	account  *ledger.Account
	client   exchange.Client
	riskEng  *risk.Engine
	guard    *risk.PortfolioGuard
	recorder ledger.TradeRecorder

	// tradeMu spans each paired ledger and guard mutation so the exposure
	// map never diverges from the set of open positions when the main loop
	// and the monitor loop interleave. Never held across client calls.
	tradeMu sync.Mutex

	symbols map[string]*symbolState
}

// New wires an engine from its collaborators. Every enabled symbol in the
// policy table gets its own buffer and combiner; a policy naming an unknown
// strategy is a fatal construction error.
func New(
	cfg *config.Config,
	account *ledger.Account,
	client exchange.Client,
	riskEng *risk.Engine,
	guard *risk.PortfolioGuard,
	recorder ledger.TradeRecorder,
	log zerolog.Logger,
) (*Engine, error) {
	if recorder == nil {
		recorder = ledger.NopRecorder{}
	}
	e := &Engine{
		cfg:      cfg,
		log:      log,
		account:  account,
		client:   client,
		riskEng:  riskEng,
		guard:    guard,
		recorder: recorder,
		symbols:  make(map[string]*symbolState),
	}
	for _, symbol := range cfg.ActiveSymbols() {
		state, err := newSymbolState(symbol, cfg.Symbols[symbol], cfg.Profile, log)
		if err != nil {
			return nil, err
		}
		e.symbols[symbol] = state
	}
	return e, nil
}

// Run consumes bar updates until ctx is cancelled or updates closes. The
// position monitor runs as an independent goroutine so exits never wait on
// the data feed.
func (e *Engine) Run(ctx context.Context, updates <-chan market.Update) error {
	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		e.monitorLoop(monitorCtx)
	}()

	heartbeat := time.Duration(e.cfg.Feed.HeartbeatSecs) * time.Second
	timer := time.NewTimer(heartbeat)
	defer timer.Stop()

	e.log.Info().Strs("symbols", e.cfg.ActiveSymbols()).Msg("engine started")

loop:
	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(heartbeat)

		select {
		case <-ctx.Done():
			break loop
		case <-timer.C:
			e.log.Warn().Dur("idle", heartbeat).Msg("no market data received, feed may be stalled")
		case u, ok := <-updates:
			if !ok {
				e.log.Warn().Msg("market data channel closed")
				break loop
			}
			e.handleUpdate(ctx, u)
		}
	}

	cancelMonitor()
	<-monitorDone
	e.shutdown()
	return ctx.Err()
}

// handleUpdate runs one bar through the full pipeline for its symbol.
func (e *Engine) handleUpdate(ctx context.Context, u market.Update) {
	state, ok := e.symbols[u.Symbol]
	if !ok {
		return
	}

	state.buffer.Push(u.Bar)
	if marker, ok := e.client.(priceMarker); ok {
		marker.MarkPrice(u.Symbol, u.Bar.Close)
	}
	e.account.MarkPrice(u.Symbol, u.Bar.Close)

	if state.buffer.Len() < state.combiner.RequiredBars() {
		return
	}

	// Strategies evaluate every bar, open position or not, so stateful
	// detectors like the momentum crossover never compare against a pair of
	// MAs frozen bars ago.
	bars := state.buffer.Bars()
	sig := state.combiner.Combine(bars)
	if sig == nil {
		return
	}
	metrics.SignalsTotal.WithLabelValues(u.Symbol, string(sig.Kind)).Inc()
	if !sig.Actionable() {
		return
	}

	// One position per symbol, no pyramiding: the signal is dropped, not
	// executed.
	if _, open := e.account.Position(u.Symbol); open {
		e.log.Info().Str("sym", u.Symbol).Str("kind", string(sig.Kind)).
			Float64("conf", sig.Confidence).
			Msg("signal ignored while position open")
		return
	}

	if !state.tradeAllowed(u.Bar.Time) {
		e.log.Info().Str("sym", u.Symbol).Int("max", state.policy.MaxDailyTrades).
			Msg("signal refused, daily trade cap reached")
		metrics.RiskRejectionsTotal.WithLabelValues(u.Symbol, "daily_trades").Inc()
		return
	}

	e.attemptEntry(ctx, state, bars, sig)
}

// attemptEntry applies the risk checks in their fixed order and opens the
// position when all of them pass. A failure at any stage aborts the attempt
// without side effects.
func (e *Engine) attemptEntry(ctx context.Context, state *symbolState, bars []market.Bar, sig *strategy.Signal) {
	symbol := sig.Symbol
	entry := sig.EntryPrice

	if calm, trPct := e.riskEng.CheckVolatility(bars, 0); !calm {
		e.log.Info().Str("sym", symbol).Float64("range_pct", trPct).Msg("entry blocked by volatility gate")
		metrics.RiskRejectionsTotal.WithLabelValues(symbol, "volatility").Inc()
		return
	}

	side := ledger.Long
	riskSide := risk.Long
	orderSide := exchange.Buy
	if sig.Kind == strategy.Sell {
		side = ledger.Short
		riskSide = risk.Short
		orderSide = exchange.Sell
	}

	stopRes := e.riskEng.DynamicStop(bars, entry, riskSide)
	stop := stopRes.Price

	// Target sits rewardRatio stop-distances away from entry, on the profit
	// side.
	distance := entry - stop
	if side == ledger.Short {
		distance = stop - entry
	}
	takeProfit := entry + distance*e.cfg.Engine.RewardRatio
	if side == ledger.Short {
		takeProfit = entry - distance*e.cfg.Engine.RewardRatio
	}

	balance := e.account.Balance()
	e.riskEng.UpdateDailyPnL(e.account.DailyPnL())
	sizeRes := e.riskEng.SafeSize(balance, entry, stop, e.cfg.Engine.WinRate, e.cfg.Engine.RewardRatio)
	if sizeRes.Rejected {
		e.log.Info().Str("sym", symbol).Str("reason", sizeRes.Reason).Msg("entry blocked by sizing")
		metrics.RiskRejectionsTotal.WithLabelValues(symbol, "sizing").Inc()
		return
	}
	qty := sizeRes.Qty
	if max := state.policy.MaxPositionNotional; max > 0 && qty*entry > max {
		qty = max / entry
	}

	notional := qty * entry
	if allowed, reason := e.guard.CanOpen(symbol, notional, balance); !allowed {
		e.log.Info().Str("sym", symbol).Str("reason", reason).Msg("entry blocked by portfolio guard")
		metrics.RiskRejectionsTotal.WithLabelValues(symbol, "portfolio").Inc()
		return
	}

	order, err := e.client.PlaceOrder(ctx, symbol, orderSide, qty, exchange.Market, entry)
	if err != nil {
		e.log.Error().Err(err).Str("sym", symbol).Msg("order placement failed")
		return
	}

	e.tradeMu.Lock()
	pos, err := e.account.Open(symbol, side, entry, qty, stop, takeProfit)
	if err != nil {
		e.tradeMu.Unlock()
		e.log.Error().Err(err).Str("sym", symbol).Str("order_id", order.ID).
			Msg("order filled but position could not be recorded")
		return
	}
	e.guard.Register(symbol, pos.Notional())
	e.tradeMu.Unlock()
	state.recordTrade(sig.Ts)

	e.recorder.Record(ledger.TradeEvent{
		Type:    ledger.EventEntry,
		Symbol:  symbol,
		Side:    side,
		Price:   entry,
		Size:    qty,
		Reason:  sig.Reason,
		OrderID: order.ID,
		Ts:      sig.Ts,
	})
	metrics.TradesOpenedTotal.WithLabelValues(symbol, string(side)).Inc()
	metrics.OpenPositions.Inc()

	e.log.Info().
		Str("sym", symbol).Str("side", string(side)).
		Float64("entry", entry).Float64("qty", qty).
		Float64("stop", stop).Float64("target", takeProfit).
		Bool("stop_fallback", stopRes.Fallback).Float64("conf", sig.Confidence).
		Msg("position opened")
}

// monitorLoop polls open positions on a fixed cadence and closes any whose
// stop or target has been crossed. Prices are fetched outside any lock.
func (e *Engine) monitorLoop(ctx context.Context) {
	interval := time.Duration(e.cfg.Engine.MonitorIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkPositions(ctx)
		}
	}
}

func (e *Engine) checkPositions(ctx context.Context) {
	for _, pos := range e.account.OpenPositions() {
		ticker, err := e.client.GetTicker(ctx, pos.Symbol)
		if err != nil {
			e.log.Warn().Err(err).Str("sym", pos.Symbol).Msg("monitor could not fetch price")
			continue
		}
		price := ticker.Last
		e.account.MarkPrice(pos.Symbol, price)

		if reason, hit := exitReason(pos, price); hit {
			e.closePosition(ctx, pos, price, reason)
		}
	}
}

// exitReason reports whether the price has crossed the position's target or
// stop, side aware. Take profit wins when both would trigger on one tick.
func exitReason(pos ledger.Position, price float64) (string, bool) {
	if pos.Side == ledger.Long {
		if pos.TakeProfit > 0 && price >= pos.TakeProfit {
			return reasonTakeProfit, true
		}
		if pos.StopLoss > 0 && price <= pos.StopLoss {
			return reasonStopLoss, true
		}
		return "", false
	}
	if pos.TakeProfit > 0 && price <= pos.TakeProfit {
		return reasonTakeProfit, true
	}
	if pos.StopLoss > 0 && price >= pos.StopLoss {
		return reasonStopLoss, true
	}
	return "", false
}

// closePosition submits the closing order and, only on success, realizes the
// trade in the ledger. On failure the position stays open for the next tick.
func (e *Engine) closePosition(ctx context.Context, pos ledger.Position, price float64, reason string) {
	orderSide := exchange.Sell
	if pos.Side == ledger.Short {
		orderSide = exchange.Buy
	}

	order, err := e.client.PlaceOrder(ctx, pos.Symbol, orderSide, pos.Size, exchange.Market, price)
	if err != nil {
		e.log.Error().Err(err).Str("sym", pos.Symbol).Str("reason", reason).
			Msg("close order failed, position remains open")
		return
	}

	e.tradeMu.Lock()
	trade, err := e.account.Close(pos.Symbol, price)
	if err != nil {
		e.tradeMu.Unlock()
		e.log.Error().Err(err).Str("sym", pos.Symbol).Msg("ledger close failed")
		return
	}
	e.guard.Deregister(pos.Symbol)
	e.tradeMu.Unlock()
	e.riskEng.UpdateDailyPnL(e.account.DailyPnL())

	e.recorder.Record(ledger.TradeEvent{
		Type:    ledger.EventExit,
		Symbol:  pos.Symbol,
		Side:    pos.Side,
		Price:   price,
		Size:    pos.Size,
		PnL:     trade.RealizedPnL,
		Reason:  reason,
		OrderID: order.ID,
		Ts:      trade.ExitTime,
	})
	metrics.TradesClosedTotal.WithLabelValues(pos.Symbol, reason).Inc()
	metrics.OpenPositions.Dec()

	e.log.Info().
		Str("sym", pos.Symbol).Str("side", string(pos.Side)).Str("reason", reason).
		Float64("exit", price).Float64("pnl", trade.RealizedPnL).
		Dur("held", trade.Duration).
		Msg("position closed")
}

// shutdown optionally flattens open positions, then logs the session summary.
// Close orders run on a fresh short-lived context because the run context is
// already cancelled.
func (e *Engine) shutdown() {
	if e.cfg.Engine.CloseOnShutdown {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, pos := range e.account.OpenPositions() {
			if err := e.client.CancelAllOrders(ctx, pos.Symbol); err != nil {
				e.log.Warn().Err(err).Str("sym", pos.Symbol).Msg("cancel orders on shutdown failed")
			}
			price := pos.EntryPrice
			if ticker, err := e.client.GetTicker(ctx, pos.Symbol); err == nil {
				price = ticker.Last
			}
			e.closePosition(ctx, pos, price, reasonShutdown)
		}
	}

	stats := e.account.Stats()
	e.log.Info().
		Float64("balance", stats.Balance).Float64("equity", stats.Equity).
		Int("trades", stats.TotalTrades).Float64("win_rate", stats.WinRate).
		Float64("profit_factor", stats.ProfitFactor).
		Int("open_positions", stats.OpenPositions).
		Msg("engine stopped")
}
