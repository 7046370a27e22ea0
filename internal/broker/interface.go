package broker

import (
	"context"
	"time"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderType represents the execution type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
	OrderTypeStop   OrderType = "Stop"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "New"
	OrderStatusFilled   OrderStatus = "Filled"
	OrderStatusCanceled OrderStatus = "Canceled"
	OrderStatusRejected OrderStatus = "Rejected"
)

// Order is one order on the venue: filled, resting, canceled or rejected.
// Price is the fill price once Status is Filled; LimitPrice and StopPrice
// carry the resting conditions for Limit and Stop orders.
type Order struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       OrderSide   `json:"side"`
	Type       OrderType   `json:"type"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	LimitPrice float64     `json:"limit_price,omitempty"`
	StopPrice  float64     `json:"stop_price,omitempty"`
	Commission float64     `json:"commission"`
	Status     OrderStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Account is a snapshot of the venue account.
type Account struct {
	Cash   float64 `json:"cash"`
	Equity float64 `json:"equity"`
}

// Broker executes orders against some venue: a simulated book for paper
// trading or a real exchange.
type Broker interface {
	GetName() string

	// GetPrice returns the venue's latest price for the symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceMarketOrder fills immediately at the venue's price. A rejected
	// order comes back with OrderStatusRejected and a reason, not an
	// error; errors mean the request itself failed.
	PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (*Order, error)

	// PlaceLimitOrder rests until the market trades at or through the
	// limit price. A marketable limit fills immediately.
	PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, quantity, limitPrice float64) (*Order, error)

	// PlaceStopOrder rests until the market trades at or through the stop
	// price, then fills as a market order.
	PlaceStopOrder(ctx context.Context, symbol string, side OrderSide, quantity, stopPrice float64) (*Order, error)

	// CancelOrder cancels a resting order. Canceling an order that is
	// already filled, canceled or unknown is an error.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetPositions returns held quantity per symbol, negative for shorts.
	GetPositions(ctx context.Context) (map[string]float64, error)

	// GetBalance returns the available cash balance.
	GetBalance(ctx context.Context) (float64, error)

	// GetAccount returns the cash balance and marked-to-market equity.
	GetAccount(ctx context.Context) (*Account, error)
}
