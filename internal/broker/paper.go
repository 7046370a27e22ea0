package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperBroker simulates an exchange in memory: market orders fill instantly
// at the last pushed price plus directional slippage, limit and stop orders
// rest until a price update crosses them, commission is charged on every
// fill, and cash can never go negative.
type PaperBroker struct {
	mu             sync.Mutex
	cash           float64
	positions      map[string]float64
	prices         map[string]float64
	open           map[string]*Order
	commissionRate float64
	slippageRate   float64
}

func NewPaperBroker(initialCash, commissionRate, slippageRate float64) (*PaperBroker, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive, got %.2f", initialCash)
	}
	if commissionRate < 0 || slippageRate < 0 {
		return nil, fmt.Errorf("commission and slippage rates must not be negative")
	}
	return &PaperBroker{
		cash:           initialCash,
		positions:      make(map[string]float64),
		prices:         make(map[string]float64),
		open:           make(map[string]*Order),
		commissionRate: commissionRate,
		slippageRate:   slippageRate,
	}, nil
}

func (b *PaperBroker) GetName() string {
	return "paper"
}

// UpdatePrice pushes the latest market price for a symbol and fills any
// resting orders the new price crosses. Orders for a symbol with no price
// yet are request errors.
func (b *PaperBroker) UpdatePrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price

	for id, order := range b.open {
		if order.Symbol != symbol {
			continue
		}
		if fillPrice, triggered := b.triggerPrice(order, price); triggered {
			b.fillLocked(order, fillPrice)
			delete(b.open, id)
		}
	}
}

// triggerPrice reports whether a resting order fires at the given market
// price and at what price it fills. Limits fill at their limit price, stops
// fill at market with slippage.
func (b *PaperBroker) triggerPrice(order *Order, price float64) (float64, bool) {
	switch order.Type {
	case OrderTypeLimit:
		if order.Side == OrderSideBuy && price <= order.LimitPrice {
			return order.LimitPrice, true
		}
		if order.Side == OrderSideSell && price >= order.LimitPrice {
			return order.LimitPrice, true
		}
	case OrderTypeStop:
		if order.Side == OrderSideBuy && price >= order.StopPrice {
			return price * (1 + b.slippageRate), true
		}
		if order.Side == OrderSideSell && price <= order.StopPrice {
			return price * (1 - b.slippageRate), true
		}
	}
	return 0, false
}

// fillLocked settles an order at the given fill price, or rejects it when
// cash or position is short. Caller holds the mutex.
func (b *PaperBroker) fillLocked(order *Order, fillPrice float64) {
	commission := order.Quantity * fillPrice * b.commissionRate

	if order.Side == OrderSideBuy {
		cost := order.Quantity*fillPrice + commission
		if cost > b.cash {
			order.Status = OrderStatusRejected
			order.Reason = fmt.Sprintf("insufficient cash: need %.2f, have %.2f", cost, b.cash)
			return
		}
		b.cash -= cost
		b.positions[order.Symbol] += order.Quantity
	} else {
		if b.positions[order.Symbol] < order.Quantity {
			order.Status = OrderStatusRejected
			order.Reason = fmt.Sprintf("insufficient position: need %.8f, have %.8f", order.Quantity, b.positions[order.Symbol])
			return
		}
		b.cash += order.Quantity*fillPrice - commission
		b.positions[order.Symbol] -= order.Quantity
		if b.positions[order.Symbol] == 0 {
			delete(b.positions, order.Symbol)
		}
	}

	order.Price = fillPrice
	order.Commission = commission
	order.Status = OrderStatusFilled
}

func validateOrderInputs(side OrderSide, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %.8f", quantity)
	}
	if side != OrderSideBuy && side != OrderSideSell {
		return fmt.Errorf("unknown order side %q", side)
	}
	return nil
}

func (b *PaperBroker) GetPrice(ctx context.Context, symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for symbol %s", symbol)
	}
	return price, nil
}

func (b *PaperBroker) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64) (*Order, error) {
	if err := validateOrderInputs(side, quantity); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for symbol %s", symbol)
	}

	// buys pay up, sells receive less
	fillPrice := price * (1 + b.slippageRate)
	if side == OrderSideSell {
		fillPrice = price * (1 - b.slippageRate)
	}

	order := &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Type:      OrderTypeMarket,
		Quantity:  quantity,
		Status:    OrderStatusNew,
		CreatedAt: time.Now().UTC(),
	}
	b.fillLocked(order, fillPrice)
	return order, nil
}

func (b *PaperBroker) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, quantity, limitPrice float64) (*Order, error) {
	if err := validateOrderInputs(side, quantity); err != nil {
		return nil, err
	}
	if limitPrice <= 0 {
		return nil, fmt.Errorf("limit price must be positive, got %.8f", limitPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for symbol %s", symbol)
	}

	order := &Order{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Type:       OrderTypeLimit,
		Quantity:   quantity,
		LimitPrice: limitPrice,
		Status:     OrderStatusNew,
		CreatedAt:  time.Now().UTC(),
	}

	if fillPrice, triggered := b.triggerPrice(order, price); triggered {
		b.fillLocked(order, fillPrice)
		return order, nil
	}
	b.open[order.ID] = order
	return order, nil
}

func (b *PaperBroker) PlaceStopOrder(ctx context.Context, symbol string, side OrderSide, quantity, stopPrice float64) (*Order, error) {
	if err := validateOrderInputs(side, quantity); err != nil {
		return nil, err
	}
	if stopPrice <= 0 {
		return nil, fmt.Errorf("stop price must be positive, got %.8f", stopPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for symbol %s", symbol)
	}

	order := &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Type:      OrderTypeStop,
		Quantity:  quantity,
		StopPrice: stopPrice,
		Status:    OrderStatusNew,
		CreatedAt: time.Now().UTC(),
	}

	if fillPrice, triggered := b.triggerPrice(order, price); triggered {
		b.fillLocked(order, fillPrice)
		return order, nil
	}
	b.open[order.ID] = order
	return order, nil
}

func (b *PaperBroker) CancelOrder(ctx context.Context, symbol, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.open[orderID]
	if !ok {
		return fmt.Errorf("no open order %s", orderID)
	}
	if symbol != "" && order.Symbol != symbol {
		return fmt.Errorf("order %s is for %s, not %s", orderID, order.Symbol, symbol)
	}
	order.Status = OrderStatusCanceled
	delete(b.open, orderID)
	return nil
}

// OpenOrders returns the resting orders.
func (b *PaperBroker) OpenOrders() []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := make([]*Order, 0, len(b.open))
	for _, order := range b.open {
		orders = append(orders, order)
	}
	return orders
}

func (b *PaperBroker) GetPositions(ctx context.Context) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make(map[string]float64, len(b.positions))
	for symbol, qty := range b.positions {
		positions[symbol] = qty
	}
	return positions, nil
}

func (b *PaperBroker) GetAccount(ctx context.Context) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Account{Cash: b.cash, Equity: b.equityLocked()}, nil
}

func (b *PaperBroker) GetBalance(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash, nil
}

// Position returns the held quantity of a symbol, zero when flat.
func (b *PaperBroker) Position(symbol string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positions[symbol]
}

// Equity marks all positions to the latest prices and adds cash.
func (b *PaperBroker) Equity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equityLocked()
}

func (b *PaperBroker) equityLocked() float64 {
	equity := b.cash
	for symbol, qty := range b.positions {
		equity += qty * b.prices[symbol]
	}
	return equity
}
