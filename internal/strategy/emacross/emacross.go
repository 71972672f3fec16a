// Package emacross trades the crossing of a fast and a slow exponential moving average:
// it buys when the fast average crosses above the slow one and sells everything on the way down.
package emacross

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/columns"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/strategy"
	"go.uber.org/zap"
)

var _ strategy.Strategy = (*EMACross)(nil)

type trend int

const (
	trendUnknown trend = iota
	trendUp
	trendDown
)

// Params configures the crossover.
type Params struct {
	FastPeriod int
	SlowPeriod int
	// Quantity is the number of shares bought on an upward cross.
	Quantity int64
}

// EMACross crossover strategy.
type EMACross struct {
	name    string
	symbols []string
	params  Params
	fast    columns.Column
	slow    columns.Column
	broker  strategy.Broker
	l       *zap.Logger

	trends map[string]trend
}

// New creates an EMA crossover strategy.
func New(name string, symbols []string, params Params, l *zap.Logger) (*EMACross, error) {
	if len(symbols) == 0 {
		return nil, errors.New("ema cross needs at least one symbol")
	}
	if params.FastPeriod < 1 || params.SlowPeriod <= params.FastPeriod {
		return nil, errors.Errorf("ema periods must satisfy 0 < fast < slow, got %d and %d",
			params.FastPeriod, params.SlowPeriod)
	}
	if params.Quantity <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidQuantity, "ema cross quantity %d", params.Quantity)
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &EMACross{
		name:    name,
		symbols: symbols,
		params:  params,
		fast:    columns.EMA(params.FastPeriod),
		slow:    columns.EMA(params.SlowPeriod),
		l:       l,
		trends:  make(map[string]trend, len(symbols)),
	}, nil
}

func (s *EMACross) Name() string {
	return s.name
}

func (s *EMACross) DerivedColumns() []columns.Column {
	return []columns.Column{s.fast, s.slow}
}

func (s *EMACross) Startup(b strategy.Broker) error {
	s.broker = b
	for _, symbol := range s.symbols {
		if err := b.Watch(symbol); err != nil {
			return errors.Wrapf(err, "watch %s", symbol)
		}
	}
	return nil
}

// Train records the trend at the end of the training period so the first testing
// frame only trades on an actual cross.
func (s *EMACross) Train() error {
	for _, symbol := range s.symbols {
		s.trends[symbol] = s.currentTrend(symbol)
	}
	return nil
}

func (s *EMACross) RunOneTimeFrame(now time.Time, processed []domain.ProcessedOrder) error {
	for _, order := range processed {
		if !order.Filled() {
			s.l.Warn("ema cross order rejected", zap.String("order", order.String()), zap.Error(order.Reason))
		}
	}

	for _, symbol := range s.symbols {
		next := s.currentTrend(symbol)
		prev := s.trends[symbol]
		s.trends[symbol] = next

		if next == trendUnknown || prev == trendUnknown || next == prev {
			continue
		}

		holding := s.broker.Portfolio().Holding(symbol)
		switch {
		case next == trendUp && holding == 0:
			if _, err := s.broker.PlaceOrder(symbol, s.params.Quantity, domain.OrderTypeBuy); err != nil {
				return errors.Wrapf(err, "buy %s", symbol)
			}
			s.l.Debug("fast ema crossed above slow", zap.String("symbol", symbol), zap.Time("time", now))
		case next == trendDown && holding > 0:
			if _, err := s.broker.PlaceOrder(symbol, holding, domain.OrderTypeSell); err != nil {
				return errors.Wrapf(err, "sell %s", symbol)
			}
			s.l.Debug("fast ema crossed below slow", zap.String("symbol", symbol), zap.Time("time", now))
		}
	}

	return nil
}

func (s *EMACross) currentTrend(symbol string) trend {
	fast, ok := s.broker.Column(symbol, s.fast.Name())
	if !ok {
		return trendUnknown
	}
	slow, ok := s.broker.Column(symbol, s.slow.Name())
	if !ok {
		return trendUnknown
	}

	switch fast.Cmp(slow) {
	case 1:
		return trendUp
	case -1:
		return trendDown
	default:
		return trendUnknown
	}
}

func (s *EMACross) Cleanup() error {
	return nil
}

// Spread returns fast minus slow EMA of symbol at the current frame.
func (s *EMACross) Spread(symbol string) (decimal.Decimal, bool) {
	fast, ok := s.broker.Column(symbol, s.fast.Name())
	if !ok {
		return decimal.Zero, false
	}
	slow, ok := s.broker.Column(symbol, s.slow.Name())
	if !ok {
		return decimal.Zero, false
	}
	return fast.Sub(slow), true
}
