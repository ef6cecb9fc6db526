// Package ledger is the authoritative record of open positions, closed
// trades, and realized/unrealized P&L, per instrument and in aggregate.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Side enumerates position direction.
type Side string

const (
	// Long profits when price rises.
	Long Side = "long"
	// Short profits when price falls.
	Short Side = "short"
)

// Position is an open trade owned exclusively by the ledger. It is created on
// execution, price-marked by the monitor loop, and converted to a ClosedTrade
// on close.
type Position struct {
	Symbol        string
	Side          Side
	EntryPrice    float64
	Size          float64
	EntryTime     time.Time
	StopLoss      float64
	TakeProfit    float64
	UnrealizedPnL float64
}

// Notional returns the position's monetary value at entry.
func (p Position) Notional() float64 { return p.EntryPrice * p.Size }

// ClosedTrade is the immutable snapshot appended to history when a position
// closes.
type ClosedTrade struct {
	Symbol      string
	Side        Side
	EntryPrice  float64
	ExitPrice   float64
	Size        float64
	RealizedPnL float64
	EntryTime   time.Time
	ExitTime    time.Time
	Duration    time.Duration
}

// Winner reports whether the trade realized a profit.
func (t ClosedTrade) Winner() bool { return t.RealizedPnL > 0 }

// Stats is an aggregate performance summary.
type Stats struct {
	Balance        float64
	Equity         float64
	UnrealizedPnL  float64
	DailyPnL       float64
	DailyTrades    int
	TotalTrades    int
	Wins           int
	Losses         int
	WinRate        float64 // fraction, 0 when no trades
	ProfitFactor   float64 // total profit / total loss
	AvgWin         float64
	AvgLoss        float64
	OpenPositions  int
	TotalReturnPct float64
}

// ErrPositionExists is returned when opening against an already-open symbol.
var ErrPositionExists = errors.New("position already open for symbol")

// ErrNoPosition is returned when closing a symbol with no open position.
var ErrNoPosition = errors.New("no open position for symbol")

// Account tracks balance, the daily P&L window, per-symbol positions, and
// trade history. The daily accumulator resets exactly once per calendar-day
// rollover, checked on every operation that touches it.
type Account struct {
	mu  sync.Mutex
	now func() time.Time

	initialBalance float64
	balance        float64

	day         time.Time // calendar day the daily window belongs to
	dailyPnL    float64
	dailyTrades int

	totalTrades int
	wins        int
	losses      int
	totalProfit float64
	totalLoss   float64

	positions map[string]*Position
	closed    []ClosedTrade
}

// NewAccount constructs an account with the given starting balance.
func NewAccount(initialBalance float64) *Account {
	a := &Account{
		now:            time.Now,
		initialBalance: initialBalance,
		balance:        initialBalance,
		positions:      make(map[string]*Position),
	}
	a.day = dateOf(a.now())
	return a
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// rollover resets the daily window when the calendar day has changed.
// Callers must hold the mutex.
func (a *Account) rollover(at time.Time) {
	if day := dateOf(at); !day.Equal(a.day) {
		a.day = day
		a.dailyPnL = 0
		a.dailyTrades = 0
	}
}

// Open records a new position. At most one position may exist per symbol, and
// a non-zero stop must sit on the loss side of entry for the given side.
func (a *Account) Open(symbol string, side Side, entry, size, stopLoss, takeProfit float64) (Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.positions[symbol]; exists {
		return Position{}, fmt.Errorf("%w: %s", ErrPositionExists, symbol)
	}
	if stopLoss != 0 {
		if side == Long && stopLoss >= entry {
			return Position{}, fmt.Errorf("long stop %.8f not below entry %.8f", stopLoss, entry)
		}
		if side == Short && stopLoss <= entry {
			return Position{}, fmt.Errorf("short stop %.8f not above entry %.8f", stopLoss, entry)
		}
	}

	pos := &Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		Size:       size,
		EntryTime:  a.now(),
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	a.positions[symbol] = pos
	return *pos, nil
}

// Close realizes the position at exitPrice, updates balance, the daily window,
// and the win/loss counters, and appends the trade to history.
func (a *Account) Close(symbol string, exitPrice float64) (ClosedTrade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[symbol]
	if !ok {
		return ClosedTrade{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	pnl := (exitPrice - pos.EntryPrice) * pos.Size
	if pos.Side == Short {
		pnl = (pos.EntryPrice - exitPrice) * pos.Size
	}

	exitTime := a.now()
	a.rollover(exitTime)

	trade := ClosedTrade{
		Symbol:      symbol,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Size:        pos.Size,
		RealizedPnL: pnl,
		EntryTime:   pos.EntryTime,
		ExitTime:    exitTime,
		Duration:    exitTime.Sub(pos.EntryTime),
	}

	a.balance += pnl
	a.dailyPnL += pnl
	a.dailyTrades++
	a.totalTrades++
	if pnl > 0 {
		a.wins++
		a.totalProfit += pnl
	} else {
		a.losses++
		a.totalLoss += -pnl
	}

	delete(a.positions, symbol)
	a.closed = append(a.closed, trade)
	return trade, nil
}

// MarkPrice refreshes a position's unrealized P&L from the latest price.
func (a *Account) MarkPrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos, ok := a.positions[symbol]
	if !ok {
		return
	}
	if pos.Side == Long {
		pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Size
	} else {
		pos.UnrealizedPnL = (pos.EntryPrice - price) * pos.Size
	}
}

// Position returns a copy of the open position for symbol, if any.
func (a *Account) Position(symbol string) (Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos, ok := a.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// OpenPositions returns copies of every open position.
func (a *Account) OpenPositions() []Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Position, 0, len(a.positions))
	for _, pos := range a.positions {
		out = append(out, *pos)
	}
	return out
}

// ClosedTrades returns a copy of the trade history.
func (a *Account) ClosedTrades() []ClosedTrade {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ClosedTrade, len(a.closed))
	copy(out, a.closed)
	return out
}

// Balance returns the current realized balance.
func (a *Account) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// DailyPnL returns today's realized P&L, rolling the window first if the
// calendar day has changed.
func (a *Account) DailyPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollover(a.now())
	return a.dailyPnL
}

// DailyTrades returns the number of trades closed today.
func (a *Account) DailyTrades() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollover(a.now())
	return a.dailyTrades
}

// Stats returns an aggregate performance summary.
func (a *Account) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollover(a.now())

	var unrealized float64
	for _, pos := range a.positions {
		unrealized += pos.UnrealizedPnL
	}

	s := Stats{
		Balance:       a.balance,
		Equity:        a.balance + unrealized,
		UnrealizedPnL: unrealized,
		DailyPnL:      a.dailyPnL,
		DailyTrades:   a.dailyTrades,
		TotalTrades:   a.totalTrades,
		Wins:          a.wins,
		Losses:        a.losses,
		OpenPositions: len(a.positions),
	}
	if a.totalTrades > 0 {
		s.WinRate = float64(a.wins) / float64(a.totalTrades)
	}
	if a.totalLoss > 0 {
		s.ProfitFactor = a.totalProfit / a.totalLoss
	}
	if a.wins > 0 {
		s.AvgWin = a.totalProfit / float64(a.wins)
	}
	if a.losses > 0 {
		s.AvgLoss = a.totalLoss / float64(a.losses)
	}
	if a.initialBalance > 0 {
		s.TotalReturnPct = (a.balance - a.initialBalance) / a.initialBalance * 100
	}
	return s
}
