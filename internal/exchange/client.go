// Package exchange hosts the market-data feed and the trading-API client
// boundary the engine executes through.
package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gamboaalejandro/trading-bot/internal/ledger"
	"github.com/gamboaalejandro/trading-bot/internal/metrics"
)

// OrderSide enumerates order directions.
type OrderSide string

const (
	// Buy indicates a long order.
	Buy OrderSide = "buy"
	// Sell indicates a short order.
	Sell OrderSide = "sell"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	// Market orders fill at the current price.
	Market OrderType = "market"
	// Limit orders fill at the given price or better.
	Limit OrderType = "limit"
)

// OrderResult reports the outcome of an order placement.
type OrderResult struct {
	ID     string
	Status string
}

// Ticker is a point-in-time price snapshot for one instrument.
type Ticker struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
}

// Client is the execution collaborator boundary. Any error it returns is a
// recoverable trade-attempt failure: the engine logs it, aborts the cycle,
// and leaves its state unchanged.
type Client interface {
	PlaceOrder(ctx context.Context, symbol string, side OrderSide, qty float64, orderType OrderType, price float64) (OrderResult, error)
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
	CancelAllOrders(ctx context.Context, symbol string) error
}

// PaperClient simulates execution against the in-process account: orders
// always fill at the requested price and balances come from the ledger.
// Price marks are fed by the engine from the bar stream.
type PaperClient struct {
	account *ledger.Account
	log     zerolog.Logger

	marks *markTable
}

// NewPaperClient builds a paper execution client backed by the account.
func NewPaperClient(account *ledger.Account, log zerolog.Logger) *PaperClient {
	return &PaperClient{
		account: account,
		log:     log,
		marks:   newMarkTable(),
	}
}

// MarkPrice records the latest observed price for a symbol so GetTicker can
// answer without a network hop.
func (c *PaperClient) MarkPrice(symbol string, price float64) {
	c.marks.set(symbol, price)
}

// PlaceOrder fills immediately at the requested price and logs the fill.
func (c *PaperClient) PlaceOrder(_ context.Context, symbol string, side OrderSide, qty float64, orderType OrderType, price float64) (OrderResult, error) {
	if qty <= 0 {
		return OrderResult{}, fmt.Errorf("quantity must be positive, got %v", qty)
	}
	if price <= 0 {
		if last, ok := c.marks.get(symbol); ok {
			price = last
		} else {
			return OrderResult{}, fmt.Errorf("no mark price for %s", symbol)
		}
	}

	id := uuid.NewString()
	metrics.OrdersTotal.WithLabelValues(symbol, string(side)).Inc()
	c.log.Info().
		Str("sym", symbol).Str("side", string(side)).Str("type", string(orderType)).
		Float64("qty", qty).Float64("px", price).Str("order_id", id).
		Msg("paper order filled")
	return OrderResult{ID: id, Status: "filled"}, nil
}

// GetTicker returns the latest marked price for the symbol.
func (c *PaperClient) GetTicker(_ context.Context, symbol string) (Ticker, error) {
	last, ok := c.marks.get(symbol)
	if !ok {
		return Ticker{}, fmt.Errorf("no mark price for %s", symbol)
	}
	return Ticker{Symbol: symbol, Last: last, Bid: last, Ask: last}, nil
}

// GetBalance reports the account's realized balance regardless of asset.
func (c *PaperClient) GetBalance(context.Context, string) (float64, error) {
	return c.account.Balance(), nil
}

// CancelAllOrders is a no-op: paper orders fill instantly.
func (c *PaperClient) CancelAllOrders(_ context.Context, symbol string) error {
	c.log.Debug().Str("sym", symbol).Msg("cancel all orders (paper no-op)")
	return nil
}

var _ Client = (*PaperClient)(nil)
