// Package strategy defines the contract between the simulation engine and trading strategies.
package strategy

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/columns"
	"github.com/vadiminshakov/monte/internal/domain"
)

// Broker is the view of the brokerage a strategy receives in Startup.
type Broker interface {
	// Watch registers interest in symbol. Watching twice is a no-op.
	Watch(symbol string) error
	// PlaceOrder queues an order. Its outcome is delivered with the next frame.
	PlaceOrder(symbol string, quantity int64, orderType domain.OrderType) (domain.OrderHandle, error)
	Asset(symbol string) (domain.Asset, error)
	// Assets iterates over watched assets; the sequence can be iterated any number of times.
	Assets() iter.Seq[domain.Asset]
	Portfolio() domain.PortfolioSnapshot
	// Column returns the current frame value of a derived column.
	Column(symbol, name string) (decimal.Decimal, bool)
	TotalValue() decimal.Decimal
}

// Strategy is driven through Startup, Train, RunOneTimeFrame (once per testing frame) and Cleanup,
// each exactly once and in that order.
type Strategy interface {
	Name() string
	// DerivedColumns lists the columns the engine attaches to every frame before training.
	DerivedColumns() []columns.Column
	// Startup runs before any market data is visible. Watch symbols here.
	Startup(b Broker) error
	// Train runs after training frames were applied. Orders cannot be placed.
	Train() error
	// RunOneTimeFrame receives the outcome of orders placed in the previous frame.
	RunOneTimeFrame(now time.Time, processed []domain.ProcessedOrder) error
	// Cleanup runs after the final settlement. The broker is read-only.
	Cleanup() error
}
