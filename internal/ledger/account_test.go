package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestOpenCloseLongRealizesPnL(t *testing.T) {
	a := NewAccount(1000)

	if _, err := a.Open("BTCUSDT", Long, 100, 1, 95, 110); err != nil {
		t.Fatalf("open: %v", err)
	}
	trade, err := a.Close("BTCUSDT", 110)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if trade.RealizedPnL != 10 {
		t.Fatalf("pnl = %v, want 10", trade.RealizedPnL)
	}
	if !trade.Winner() {
		t.Fatalf("expected winning trade")
	}
	if got := a.Balance(); got != 1010 {
		t.Fatalf("balance = %v, want 1010", got)
	}
	if got := a.DailyPnL(); got != 10 {
		t.Fatalf("daily pnl = %v, want 10", got)
	}
	if got := a.DailyTrades(); got != 1 {
		t.Fatalf("daily trades = %d, want 1", got)
	}
}

func TestShortPnLInverts(t *testing.T) {
	a := NewAccount(1000)
	if _, err := a.Open("ETHUSDT", Short, 100, 2, 105, 90); err != nil {
		t.Fatalf("open: %v", err)
	}
	trade, err := a.Close("ETHUSDT", 90)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if trade.RealizedPnL != 20 {
		t.Fatalf("short pnl = %v, want 20", trade.RealizedPnL)
	}
}

func TestOnePositionPerSymbol(t *testing.T) {
	a := NewAccount(1000)
	if _, err := a.Open("BTCUSDT", Long, 100, 1, 95, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err := a.Open("BTCUSDT", Long, 101, 1, 96, 0)
	if !errors.Is(err, ErrPositionExists) {
		t.Fatalf("second open err = %v, want ErrPositionExists", err)
	}
}

func TestStopMustSitOnLossSide(t *testing.T) {
	a := NewAccount(1000)
	if _, err := a.Open("BTCUSDT", Long, 100, 1, 105, 0); err == nil {
		t.Fatalf("expected rejection of long stop above entry")
	}
	if _, err := a.Open("BTCUSDT", Short, 100, 1, 95, 0); err == nil {
		t.Fatalf("expected rejection of short stop below entry")
	}
	// A zero stop means the position runs without one.
	if _, err := a.Open("BTCUSDT", Long, 100, 1, 0, 0); err != nil {
		t.Fatalf("open without stop: %v", err)
	}
}

func TestCloseWithoutPosition(t *testing.T) {
	a := NewAccount(1000)
	if _, err := a.Close("BTCUSDT", 100); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("close err = %v, want ErrNoPosition", err)
	}
}

func TestDailyWindowRollsOverAtMidnight(t *testing.T) {
	a := NewAccount(1000)
	clock := time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC)
	a.now = func() time.Time { return clock }

	if _, err := a.Open("BTCUSDT", Long, 100, 1, 95, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := a.Close("BTCUSDT", 110); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := a.DailyPnL(); got != 10 {
		t.Fatalf("daily pnl = %v, want 10", got)
	}

	clock = time.Date(2025, 3, 2, 0, 0, 1, 0, time.UTC)
	if got := a.DailyPnL(); got != 0 {
		t.Fatalf("daily pnl after rollover = %v, want 0", got)
	}
	if got := a.DailyTrades(); got != 0 {
		t.Fatalf("daily trades after rollover = %d, want 0", got)
	}
	// Lifetime numbers survive the rollover.
	if got := a.Balance(); got != 1010 {
		t.Fatalf("balance = %v, want 1010", got)
	}
	if stats := a.Stats(); stats.TotalTrades != 1 || stats.Wins != 1 {
		t.Fatalf("stats = %+v, want one winning trade", stats)
	}
}

func TestMarkPriceTracksUnrealized(t *testing.T) {
	a := NewAccount(1000)
	if _, err := a.Open("BTCUSDT", Long, 100, 2, 95, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	a.MarkPrice("BTCUSDT", 105)

	pos, ok := a.Position("BTCUSDT")
	if !ok || pos.UnrealizedPnL != 10 {
		t.Fatalf("unrealized = %v ok=%v, want 10", pos.UnrealizedPnL, ok)
	}
	if stats := a.Stats(); stats.Equity != 1010 {
		t.Fatalf("equity = %v, want 1010", stats.Equity)
	}
}

func TestStats(t *testing.T) {
	a := NewAccount(1000)

	a.Open("A", Long, 100, 1, 0, 0)
	a.Close("A", 120) // +20
	a.Open("B", Long, 100, 1, 0, 0)
	a.Close("B", 90) // -10

	s := a.Stats()
	if s.TotalTrades != 2 || s.Wins != 1 || s.Losses != 1 {
		t.Fatalf("counters = %+v", s)
	}
	if s.WinRate != 0.5 {
		t.Fatalf("win rate = %v, want 0.5", s.WinRate)
	}
	if s.ProfitFactor != 2 {
		t.Fatalf("profit factor = %v, want 2", s.ProfitFactor)
	}
	if s.AvgWin != 20 || s.AvgLoss != 10 {
		t.Fatalf("avg win/loss = %v/%v, want 20/10", s.AvgWin, s.AvgLoss)
	}
	if s.TotalReturnPct != 1 {
		t.Fatalf("total return = %v%%, want 1%%", s.TotalReturnPct)
	}
}
