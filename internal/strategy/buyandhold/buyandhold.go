// Package buyandhold buys one share of every symbol each frame while any watched asset is
// still affordable, then holds until the end of the run.
package buyandhold

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/monte/internal/columns"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/strategy"
	"go.uber.org/zap"
)

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHold benchmark strategy.
type BuyAndHold struct {
	name           string
	symbols        []string
	broker         strategy.Broker
	l              *zap.Logger
	finishedBuying bool
}

// New creates a buy-and-hold strategy over symbols.
func New(name string, symbols []string, l *zap.Logger) (*BuyAndHold, error) {
	if len(symbols) == 0 {
		return nil, errors.New("buy and hold needs at least one symbol")
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &BuyAndHold{name: name, symbols: symbols, l: l}, nil
}

func (s *BuyAndHold) Name() string {
	return s.name
}

func (s *BuyAndHold) DerivedColumns() []columns.Column {
	return nil
}

func (s *BuyAndHold) Startup(b strategy.Broker) error {
	s.broker = b
	for _, symbol := range s.symbols {
		if err := b.Watch(symbol); err != nil {
			return errors.Wrapf(err, "watch %s", symbol)
		}
	}
	return nil
}

func (s *BuyAndHold) Train() error {
	return nil
}

func (s *BuyAndHold) RunOneTimeFrame(now time.Time, processed []domain.ProcessedOrder) error {
	for _, order := range processed {
		if !order.Filled() {
			s.l.Debug("buy rejected", zap.String("order", order.String()))
		}
	}

	if s.finishedBuying {
		return nil
	}

	if !s.canBuyMoreShares() {
		s.finishedBuying = true
		s.l.Info("finished buying",
			zap.String("strategy", s.name),
			zap.Time("time", now),
			zap.String("cash", s.broker.Portfolio().Cash.String()))
		return nil
	}

	for _, symbol := range s.symbols {
		if _, err := s.broker.PlaceOrder(symbol, 1, domain.OrderTypeBuy); err != nil {
			return errors.Wrapf(err, "buy %s", symbol)
		}
	}

	return nil
}

// canBuyMoreShares reports whether cash exceeds the price of any watched asset.
func (s *BuyAndHold) canBuyMoreShares() bool {
	cash := s.broker.Portfolio().Cash
	for asset := range s.broker.Assets() {
		if asset.Priced && cash.GreaterThan(asset.Price) {
			return true
		}
	}
	return false
}

func (s *BuyAndHold) Cleanup() error {
	return nil
}

// FinishedBuying reports whether the strategy stopped placing orders.
func (s *BuyAndHold) FinishedBuying() bool {
	return s.finishedBuying
}
