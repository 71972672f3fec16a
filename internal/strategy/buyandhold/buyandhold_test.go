package buyandhold

import (
	"iter"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/monte/internal/broker"
	"github.com/vadiminshakov/monte/internal/domain"
	"go.uber.org/zap"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Watch(symbol string) error {
	return m.Called(symbol).Error(0)
}

func (m *mockBroker) PlaceOrder(symbol string, quantity int64, orderType domain.OrderType) (domain.OrderHandle, error) {
	args := m.Called(symbol, quantity, orderType)
	return args.Get(0).(domain.OrderHandle), args.Error(1)
}

func (m *mockBroker) Asset(symbol string) (domain.Asset, error) {
	args := m.Called(symbol)
	return args.Get(0).(domain.Asset), args.Error(1)
}

func (m *mockBroker) Assets() iter.Seq[domain.Asset] {
	assets := m.Called().Get(0).([]domain.Asset)
	return func(yield func(domain.Asset) bool) {
		for _, a := range assets {
			if !yield(a) {
				return
			}
		}
	}
}

func (m *mockBroker) Portfolio() domain.PortfolioSnapshot {
	return m.Called().Get(0).(domain.PortfolioSnapshot)
}

func (m *mockBroker) Column(symbol, name string) (decimal.Decimal, bool) {
	args := m.Called(symbol, name)
	return args.Get(0).(decimal.Decimal), args.Bool(1)
}

func (m *mockBroker) TotalValue() decimal.Decimal {
	return m.Called().Get(0).(decimal.Decimal)
}

func frame(t *testing.T, b *broker.Broker, at time.Time, prices map[string]int64) {
	t.Helper()
	p := make(map[string]decimal.Decimal, len(prices))
	for s, v := range prices {
		p[s] = decimal.NewFromInt(v)
	}
	require.NoError(t, b.ApplyFrame(domain.NewTimeFrame(at, p)))
}

func TestNew(t *testing.T) {
	_, err := New("bh", nil, nil)
	assert.Error(t, err)
}

func TestBuyAndHold_BuysUntilBroke(t *testing.T) {
	b, err := broker.New(decimal.NewFromInt(100), zap.NewNop())
	require.NoError(t, err)

	s, err := New("bh", []string{"A", "B"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Startup(b))
	assert.Equal(t, []string{"A", "B"}, b.Watched())
	require.NoError(t, s.Train())

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame(t, b, t1, map[string]int64{"A": 30, "B": 50})
	b.OpenTrading()
	require.NoError(t, s.RunOneTimeFrame(t1, nil))
	b.CloseTrading()
	assert.Equal(t, 2, b.Pending())
	processed := b.Settle(t1)
	require.Len(t, processed, 2)

	t2 := t1.Add(time.Hour)
	frame(t, b, t2, map[string]int64{"A": 30, "B": 50})
	b.OpenTrading()
	require.NoError(t, s.RunOneTimeFrame(t2, processed))
	b.CloseTrading()

	assert.Equal(t, 0, b.Pending())
	assert.True(t, s.FinishedBuying())
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, int64(1), b.Portfolio().Holding("A"))
	assert.Equal(t, int64(1), b.Portfolio().Holding("B"))
	require.NoError(t, s.Cleanup())
}

func TestBuyAndHold_PlaceOrderErrorIsReturned(t *testing.T) {
	m := new(mockBroker)
	m.On("Watch", "A").Return(nil)
	m.On("Portfolio").Return(domain.PortfolioSnapshot{Cash: decimal.NewFromInt(100)})
	m.On("Assets").Return([]domain.Asset{{Symbol: "A", Price: decimal.NewFromInt(10), Watched: true, Priced: true}})
	m.On("PlaceOrder", "A", int64(1), domain.OrderTypeBuy).Return(domain.OrderHandle(0), domain.ErrInvalidPhase)

	s, err := New("bh", []string{"A"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Startup(m))

	err = s.RunOneTimeFrame(time.Now(), nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidPhase))
	m.AssertExpectations(t)
}

func TestBuyAndHold_IgnoresUnpricedAssets(t *testing.T) {
	m := new(mockBroker)
	m.On("Watch", "A").Return(nil)
	m.On("Portfolio").Return(domain.PortfolioSnapshot{Cash: decimal.NewFromInt(100)})
	m.On("Assets").Return([]domain.Asset{{Symbol: "A", Watched: true}})

	s, err := New("bh", []string{"A"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Startup(m))

	require.NoError(t, s.RunOneTimeFrame(time.Now(), nil))
	assert.True(t, s.FinishedBuying())
	m.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}
