package dca

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/monte/internal/broker"
	"github.com/vadiminshakov/monte/internal/domain"
	"go.uber.org/zap"
)

type harness struct {
	t         *testing.T
	b         *broker.Broker
	s         *DCAStrategy
	at        time.Time
	processed []domain.ProcessedOrder
}

func newHarness(t *testing.T, cash int64) *harness {
	t.Helper()

	thresholds, err := domain.NewDCAThresholds(decimal.NewFromInt(10), decimal.NewFromInt(10), 3)
	require.NoError(t, err)

	b, err := broker.New(decimal.NewFromInt(cash), zap.NewNop())
	require.NoError(t, err)
	s, err := NewDCAStrategy("dca", []string{"A"}, Params{Quantity: 1, Thresholds: thresholds}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Startup(b))
	require.NoError(t, s.Train())

	return &harness{t: t, b: b, s: s, at: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func (h *harness) step(price int64) {
	h.t.Helper()

	h.at = h.at.Add(time.Hour)
	require.NoError(h.t, h.b.ApplyFrame(domain.NewTimeFrame(h.at, map[string]decimal.Decimal{
		"A": decimal.NewFromInt(price),
	})))
	h.b.OpenTrading()
	require.NoError(h.t, h.s.RunOneTimeFrame(h.at, h.processed))
	h.b.CloseTrading()
	h.processed = h.b.Settle(h.at)
}

func TestNewDCAStrategy(t *testing.T) {
	thresholds, err := domain.NewDCAThresholds(decimal.NewFromInt(5), decimal.NewFromInt(5), 2)
	require.NoError(t, err)

	_, err = NewDCAStrategy("dca", nil, Params{Quantity: 1, Thresholds: thresholds}, nil)
	assert.Error(t, err)

	_, err = NewDCAStrategy("dca", []string{"A"}, Params{Quantity: 0, Thresholds: thresholds}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = NewDCAStrategy("dca", []string{"A"}, Params{Quantity: 1}, nil)
	assert.Error(t, err)
}

func TestDCA_AveragesDownAndTakesProfit(t *testing.T) {
	h := newHarness(t, 1000)

	h.step(100)
	require.Len(t, h.processed, 1)
	assert.True(t, h.processed[0].Filled())

	h.step(85)
	series, ok := h.s.Series("A")
	require.True(t, ok)
	assert.Equal(t, int64(1), series.TotalShares)
	require.Len(t, h.processed, 1, "dip below the average triggers a second buy")
	assert.Equal(t, domain.OrderTypeBuy, h.processed[0].Type)

	h.step(130)
	series, _ = h.s.Series("A")
	assert.Equal(t, int64(2), series.TotalShares)
	assert.True(t, series.AvgEntryPrice.Equal(decimal.RequireFromString("92.5")))
	require.Len(t, h.processed, 1)
	assert.Equal(t, domain.OrderTypeSell, h.processed[0].Type)
	assert.Equal(t, int64(2), h.processed[0].Quantity, "gain above twice the threshold sells the whole series")
	assert.True(t, h.b.Portfolio().Cash.Equal(decimal.NewFromInt(1075)))
	assert.Equal(t, int64(0), h.b.Portfolio().Holding("A"))

	h.step(130)
	series, _ = h.s.Series("A")
	assert.Equal(t, int64(0), series.TotalShares)
	assert.True(t, series.LastSellPrice.Equal(decimal.NewFromInt(130)))
	require.NoError(t, h.s.Cleanup())
}

func TestDCA_WaitsForPendingOrder(t *testing.T) {
	h := newHarness(t, 1000)

	h.at = h.at.Add(time.Hour)
	require.NoError(t, h.b.ApplyFrame(domain.NewTimeFrame(h.at, map[string]decimal.Decimal{"A": decimal.NewFromInt(50)})))
	h.b.OpenTrading()
	require.NoError(t, h.s.RunOneTimeFrame(h.at, nil))
	require.NoError(t, h.s.RunOneTimeFrame(h.at, nil))
	h.b.CloseTrading()

	assert.Equal(t, 1, h.b.Pending(), "no second order while the first is unsettled")
}

func TestDCA_RejectedBuyIsRetried(t *testing.T) {
	h := newHarness(t, 10)

	h.step(50)
	require.Len(t, h.processed, 1)
	assert.ErrorIs(t, h.processed[0].Reason, domain.ErrInsufficientFunds)

	h.step(50)
	series, _ := h.s.Series("A")
	assert.True(t, series.IsEmpty())
	require.Len(t, h.processed, 1, "series is still empty so the initial buy is placed again")
	assert.Equal(t, domain.OrderStatusRejected, h.processed[0].Status)
}
