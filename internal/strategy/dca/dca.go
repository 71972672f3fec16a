// Package dca implements a Dollar-Cost Averaging strategy over simulated frames.
// Each symbol runs its own DCA series: an initial buy, further buys when the price dips
// far enough below the average entry, and take-profit sells above it.
package dca

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/monte/internal/columns"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/strategy"
	"go.uber.org/zap"
)

var _ strategy.Strategy = (*DCAStrategy)(nil)

// Params configures a DCA run.
type Params struct {
	// Quantity is the number of shares bought per DCA step.
	Quantity   int64
	Thresholds domain.DCAThresholds
}

// DCAStrategy executes DCA trades on every watched symbol.
type DCAStrategy struct {
	name    string
	symbols []string
	params  Params
	broker  strategy.Broker
	l       *zap.Logger

	series  map[string]*domain.DCASeries
	pending map[domain.OrderHandle]string
}

// NewDCAStrategy returns a configured DCA strategy.
func NewDCAStrategy(name string, symbols []string, params Params, l *zap.Logger) (*DCAStrategy, error) {
	if len(symbols) == 0 {
		return nil, errors.New("dca needs at least one symbol")
	}
	if params.Quantity <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidQuantity, "dca quantity %d", params.Quantity)
	}
	if params.Thresholds.MaxTrades < 1 {
		return nil, errors.New("dca thresholds are not set")
	}
	if l == nil {
		l = zap.NewNop()
	}

	series := make(map[string]*domain.DCASeries, len(symbols))
	for _, symbol := range symbols {
		series[symbol] = domain.NewDCASeries()
	}

	return &DCAStrategy{
		name:    name,
		symbols: symbols,
		params:  params,
		l:       l,
		series:  series,
		pending: make(map[domain.OrderHandle]string),
	}, nil
}

func (d *DCAStrategy) Name() string {
	return d.name
}

func (d *DCAStrategy) DerivedColumns() []columns.Column {
	return nil
}

func (d *DCAStrategy) Startup(b strategy.Broker) error {
	d.broker = b
	for _, symbol := range d.symbols {
		if err := b.Watch(symbol); err != nil {
			return errors.Wrapf(err, "watch %s", symbol)
		}
	}
	return nil
}

func (d *DCAStrategy) Train() error {
	return nil
}

func (d *DCAStrategy) RunOneTimeFrame(now time.Time, processed []domain.ProcessedOrder) error {
	for _, order := range processed {
		if err := d.applyProcessed(order); err != nil {
			return err
		}
	}

	for _, symbol := range d.symbols {
		if d.hasPending(symbol) {
			continue
		}
		if err := d.trade(symbol, now); err != nil {
			return errors.Wrapf(err, "dca %s", symbol)
		}
	}

	return nil
}

func (d *DCAStrategy) applyProcessed(order domain.ProcessedOrder) error {
	delete(d.pending, order.Handle)

	series, ok := d.series[order.Symbol]
	if !ok {
		return nil
	}
	if !order.Filled() {
		d.l.Warn("dca order rejected",
			zap.String("strategy", d.name),
			zap.String("order", order.String()),
			zap.Error(order.Reason))
		return nil
	}

	switch order.Type {
	case domain.OrderTypeBuy:
		if err := series.AddPurchase(order.Handle, order.FillPrice, order.Quantity, order.SettledAt); err != nil {
			return errors.Wrapf(err, "record purchase %d", order.Handle)
		}
		d.l.Info("dca purchase recorded",
			zap.String("symbol", order.Symbol),
			zap.String("price", order.FillPrice.String()),
			zap.Int64("quantity", order.Quantity),
			zap.String("avg_entry", series.AvgEntryPrice.String()),
			zap.Int("purchases", len(series.Purchases)))
	case domain.OrderTypeSell:
		series.RemoveShares(order.Quantity, order.FillPrice)
		d.l.Info("dca sell recorded",
			zap.String("symbol", order.Symbol),
			zap.String("price", order.FillPrice.String()),
			zap.Int64("quantity", order.Quantity),
			zap.Int64("remaining", series.TotalShares))
	}

	return nil
}

func (d *DCAStrategy) trade(symbol string, now time.Time) error {
	asset, err := d.broker.Asset(symbol)
	if err != nil {
		return err
	}
	if !asset.Priced || asset.Price.IsZero() {
		return nil
	}

	series := d.series[symbol]
	if series.IsEmpty() {
		return d.place(symbol, d.params.Quantity, domain.OrderTypeBuy, "initial_buy", now)
	}

	if sell := series.ShouldTakeProfitAtPrice(asset.Price, d.params.Thresholds); sell.ShouldSell {
		return d.place(symbol, sell.Quantity, domain.OrderTypeSell, sell.Reason, now)
	}

	if buy := series.ShouldBuyAtPrice(asset.Price, d.params.Thresholds); buy.ShouldBuy {
		return d.place(symbol, d.params.Quantity, domain.OrderTypeBuy, buy.Reason, now)
	}

	return nil
}

func (d *DCAStrategy) place(symbol string, quantity int64, orderType domain.OrderType, reason string, now time.Time) error {
	handle, err := d.broker.PlaceOrder(symbol, quantity, orderType)
	if err != nil {
		return err
	}
	d.pending[handle] = symbol

	d.l.Debug("dca order placed",
		zap.String("symbol", symbol),
		zap.String("type", orderType.String()),
		zap.Int64("quantity", quantity),
		zap.String("reason", reason),
		zap.Time("time", now))

	return nil
}

func (d *DCAStrategy) hasPending(symbol string) bool {
	for _, s := range d.pending {
		if s == symbol {
			return true
		}
	}
	return false
}

func (d *DCAStrategy) Cleanup() error {
	for _, symbol := range d.symbols {
		series := d.series[symbol]
		d.l.Info("dca series at cleanup",
			zap.String("strategy", d.name),
			zap.String("symbol", symbol),
			zap.Int64("shares", series.TotalShares),
			zap.String("avg_entry", series.AvgEntryPrice.String()))
	}
	return nil
}

// Series returns the DCA series of symbol.
func (d *DCAStrategy) Series(symbol string) (domain.DCASeries, bool) {
	series, ok := d.series[symbol]
	if !ok {
		return domain.DCASeries{}, false
	}
	return *series, true
}
