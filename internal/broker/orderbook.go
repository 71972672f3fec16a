package broker

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

// OrderBook queues orders placed during a frame until the next settlement.
type OrderBook struct {
	queue      []domain.Order
	lastHandle domain.OrderHandle
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// Submit validates and queues an order. Handles are only consumed by accepted orders.
func (b *OrderBook) Submit(symbol string, quantity int64, orderType domain.OrderType,
	at time.Time, price decimal.Decimal) (domain.Order, error) {
	order, err := domain.NewOrder(b.lastHandle+1, symbol, quantity, orderType, at, price)
	if err != nil {
		return domain.Order{}, err
	}

	b.lastHandle = order.Handle
	b.queue = append(b.queue, order)

	return order, nil
}

// Drain returns queued orders in submission order and empties the queue.
func (b *OrderBook) Drain() []domain.Order {
	orders := b.queue
	b.queue = nil
	return orders
}

// Len returns the number of queued orders.
func (b *OrderBook) Len() int {
	return len(b.queue)
}
