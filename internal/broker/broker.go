// Package broker implements the simulated brokerage of a single run: watched assets,
// queued orders and the portfolio they settle against.
package broker

import (
	"iter"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
	"go.uber.org/zap"
)

// Broker is the only mutation surface a strategy has. It owns one Portfolio,
// one AssetRegistry and one OrderBook. It is not safe for concurrent use:
// a run drives it from a single goroutine.
type Broker struct {
	logger    *zap.Logger
	registry  *AssetRegistry
	book      *OrderBook
	portfolio *Portfolio
	now       time.Time
	trading   bool
	sealed    bool
}

// New creates a broker funded with startingCash.
func New(startingCash decimal.Decimal, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	portfolio, err := NewPortfolio(startingCash)
	if err != nil {
		return nil, errors.Wrap(err, "init portfolio")
	}

	return &Broker{
		logger:    logger,
		registry:  NewAssetRegistry(),
		book:      NewOrderBook(),
		portfolio: portfolio,
	}, nil
}

// Watch registers interest in symbol. Watching twice is a no-op.
func (b *Broker) Watch(symbol string) error {
	if b.sealed {
		return errors.Wrapf(domain.ErrInvalidPhase, "watch %s after cleanup", symbol)
	}
	if symbol == "" {
		return errors.Wrap(domain.ErrUnknownSymbol, "empty symbol")
	}

	if b.registry.Watch(symbol) {
		b.logger.Debug("watching symbol", zap.String("symbol", symbol))
	}

	return nil
}

// PlaceOrder queues an order for settlement at the next frame boundary.
func (b *Broker) PlaceOrder(symbol string, quantity int64, orderType domain.OrderType) (domain.OrderHandle, error) {
	if !b.trading || b.sealed {
		return 0, errors.Wrapf(domain.ErrInvalidPhase, "place order %s %d %s outside of a trading frame",
			orderType.String(), quantity, symbol)
	}
	if quantity <= 0 {
		return 0, errors.Wrapf(domain.ErrInvalidQuantity, "place order %s: quantity %d", symbol, quantity)
	}

	asset, err := b.registry.Asset(symbol)
	if err != nil {
		return 0, errors.Wrap(err, "place order")
	}

	order, err := b.book.Submit(symbol, quantity, orderType, b.now, asset.Price)
	if err != nil {
		return 0, errors.Wrap(err, "place order")
	}

	b.logger.Debug("order queued",
		zap.Uint64("handle", uint64(order.Handle)),
		zap.String("symbol", symbol),
		zap.String("type", orderType.String()),
		zap.Int64("quantity", quantity),
		zap.String("price", asset.Price.String()))

	return order.Handle, nil
}

// Asset returns a read-only snapshot of a watched asset.
func (b *Broker) Asset(symbol string) (domain.Asset, error) {
	return b.registry.Asset(symbol)
}

// Assets iterates over watched assets in watch order.
func (b *Broker) Assets() iter.Seq[domain.Asset] {
	return b.registry.All()
}

// Portfolio returns a read-only copy of cash and holdings.
func (b *Broker) Portfolio() domain.PortfolioSnapshot {
	return b.portfolio.Snapshot()
}

// Column returns the current frame's value of a derived column.
func (b *Broker) Column(symbol, name string) (decimal.Decimal, bool) {
	return b.registry.Column(symbol, name)
}

// TotalValue returns cash plus holdings at current prices.
func (b *Broker) TotalValue() decimal.Decimal {
	return b.portfolio.Value(b.registry.Prices())
}

// Now returns the time of the last applied frame.
func (b *Broker) Now() time.Time {
	return b.now
}

// Watched returns watched symbols in watch order.
func (b *Broker) Watched() []string {
	return b.registry.Symbols()
}

// Pending returns the number of queued orders.
func (b *Broker) Pending() int {
	return b.book.Len()
}

// ApplyFrame moves the broker to frame: prices and derived columns of watched symbols.
func (b *Broker) ApplyFrame(frame domain.TimeFrame) error {
	if b.sealed {
		return errors.Wrap(domain.ErrInvalidPhase, "apply frame after cleanup")
	}
	if err := b.registry.Apply(frame); err != nil {
		return errors.Wrap(err, "apply frame")
	}
	b.now = frame.Time

	return nil
}

// OpenTrading allows PlaceOrder until CloseTrading.
func (b *Broker) OpenTrading() {
	b.trading = true
}

// CloseTrading rejects further PlaceOrder calls with ErrInvalidPhase.
func (b *Broker) CloseTrading() {
	b.trading = false
}

// Seal forbids any further mutation.
func (b *Broker) Seal() {
	b.trading = false
	b.sealed = true
}

// Settle converts queued orders into fills or rejections in submission order,
// against current prices. Each order is consumed exactly once.
func (b *Broker) Settle(at time.Time) []domain.ProcessedOrder {
	orders := b.book.Drain()
	processed := make([]domain.ProcessedOrder, 0, len(orders))

	for _, order := range orders {
		processed = append(processed, b.settle(order, at))
	}

	return processed
}

func (b *Broker) settle(order domain.Order, at time.Time) domain.ProcessedOrder {
	result := domain.ProcessedOrder{Order: order, SettledAt: at}

	asset, err := b.registry.Asset(order.Symbol)
	if err != nil || !asset.Priced {
		return b.reject(result, errors.Wrapf(domain.ErrNoPrice, "%s has no price", order.Symbol))
	}
	result.FillPrice = asset.Price

	switch order.Type {
	case domain.OrderTypeBuy:
		err = b.portfolio.buy(order.Symbol, order.Quantity, asset.Price)
	case domain.OrderTypeSell:
		err = b.portfolio.sell(order.Symbol, order.Quantity, asset.Price)
	default:
		err = errors.Errorf("unknown order type %d", order.Type)
	}
	if err != nil {
		return b.reject(result, err)
	}

	result.Status = domain.OrderStatusFilled
	b.logger.Info("order filled",
		zap.Uint64("handle", uint64(order.Handle)),
		zap.String("symbol", order.Symbol),
		zap.String("type", order.Type.String()),
		zap.Int64("quantity", order.Quantity),
		zap.String("price", asset.Price.String()),
		zap.String("cash", b.portfolio.Cash().String()))

	return result
}

func (b *Broker) reject(result domain.ProcessedOrder, err error) domain.ProcessedOrder {
	result.Status = domain.OrderStatusRejected
	result.Reason = errors.Cause(err)

	b.logger.Warn("order rejected",
		zap.Uint64("handle", uint64(result.Handle)),
		zap.String("symbol", result.Symbol),
		zap.String("type", result.Type.String()),
		zap.Int64("quantity", result.Quantity),
		zap.Error(err))

	return result
}

// Snapshot returns the state handed to reporters.
func (b *Broker) Snapshot() domain.BrokerSnapshot {
	prices := b.registry.Prices()
	portfolio := b.portfolio.Snapshot()

	return domain.BrokerSnapshot{
		Time:       b.now,
		Cash:       portfolio.Cash,
		Holdings:   portfolio.Holdings,
		Prices:     prices,
		TotalValue: b.portfolio.Value(prices),
		Pending:    b.book.Len(),
	}
}
