package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testThresholds() DCAThresholds {
	return DCAThresholds{
		BuyThresholdPercent:  decimal.NewFromInt(5),
		SellThresholdPercent: decimal.NewFromInt(10),
		MaxTrades:            3,
	}
}

func TestShouldBuyAtPrice_EmptySeries(t *testing.T) {
	series := NewDCASeries()

	decision := series.ShouldBuyAtPrice(decimal.NewFromInt(100), testThresholds())

	require.False(t, decision.ShouldBuy)
	require.Equal(t, "empty_series", decision.Reason)
}

func TestShouldBuyAtPrice_DipBelowAverage(t *testing.T) {
	series := NewDCASeries()
	require.NoError(t, series.AddPurchase(1, decimal.NewFromInt(100), 2, time.Now()))

	// 100 * (1 - 0.05) = 95, so price at 94 should trigger buy
	decision := series.ShouldBuyAtPrice(decimal.NewFromInt(94), testThresholds())
	require.True(t, decision.ShouldBuy)

	decision = series.ShouldBuyAtPrice(decimal.NewFromInt(97), testThresholds())
	require.False(t, decision.ShouldBuy)
	require.Equal(t, "dip_not_significant", decision.Reason)

	decision = series.ShouldBuyAtPrice(decimal.NewFromInt(101), testThresholds())
	require.False(t, decision.ShouldBuy)
	require.Equal(t, "price_not_below_avg", decision.Reason)
}

func TestShouldBuyAtPrice_MaxTrades(t *testing.T) {
	series := NewDCASeries()
	now := time.Now()
	require.NoError(t, series.AddPurchase(1, decimal.NewFromInt(100), 1, now))
	require.NoError(t, series.AddPurchase(2, decimal.NewFromInt(90), 1, now))
	require.NoError(t, series.AddPurchase(3, decimal.NewFromInt(80), 1, now))

	decision := series.ShouldBuyAtPrice(decimal.NewFromInt(50), testThresholds())

	require.False(t, decision.ShouldBuy)
	require.Equal(t, "max_trades_reached", decision.Reason)
}

func TestAddPurchase_WeightedAverage(t *testing.T) {
	series := NewDCASeries()
	now := time.Now()
	require.NoError(t, series.AddPurchase(1, decimal.NewFromInt(100), 1, now))
	require.NoError(t, series.AddPurchase(2, decimal.NewFromInt(70), 2, now.Add(time.Hour)))

	require.Equal(t, int64(3), series.TotalShares)
	require.True(t, series.AvgEntryPrice.Equal(decimal.NewFromInt(80)), series.AvgEntryPrice.String())
	require.Equal(t, now, series.FirstBuyTime)

	require.Error(t, series.AddPurchase(3, decimal.Zero, 1, now))
	require.Error(t, series.AddPurchase(3, decimal.NewFromInt(10), 0, now))
}

func TestShouldTakeProfitAtPrice(t *testing.T) {
	series := NewDCASeries()
	now := time.Now()
	require.NoError(t, series.AddPurchase(1, decimal.NewFromInt(100), 2, now))
	require.NoError(t, series.AddPurchase(2, decimal.NewFromInt(100), 3, now))

	t.Run("gain below threshold", func(t *testing.T) {
		decision := series.ShouldTakeProfitAtPrice(decimal.NewFromInt(105), testThresholds())
		require.False(t, decision.ShouldSell)
		require.Equal(t, "gain_not_significant", decision.Reason)
	})

	t.Run("partial sell of the last lot", func(t *testing.T) {
		decision := series.ShouldTakeProfitAtPrice(decimal.NewFromInt(112), testThresholds())
		require.True(t, decision.ShouldSell)
		require.Equal(t, int64(3), decision.Quantity)
		require.False(t, decision.IsFullSell)
	})

	t.Run("full sell above double threshold", func(t *testing.T) {
		decision := series.ShouldTakeProfitAtPrice(decimal.NewFromInt(125), testThresholds())
		require.True(t, decision.ShouldSell)
		require.Equal(t, int64(5), decision.Quantity)
		require.True(t, decision.IsFullSell)
	})
}

func TestRemoveShares(t *testing.T) {
	series := NewDCASeries()
	now := time.Now()
	require.NoError(t, series.AddPurchase(1, decimal.NewFromInt(100), 2, now))
	require.NoError(t, series.AddPurchase(2, decimal.NewFromInt(80), 2, now))

	series.RemoveShares(3, decimal.NewFromInt(120))

	require.Len(t, series.Purchases, 1)
	require.Equal(t, int64(1), series.TotalShares)
	require.True(t, series.AvgEntryPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, series.LastSellPrice.Equal(decimal.NewFromInt(120)))

	series.RemoveShares(5, decimal.NewFromInt(120))
	require.True(t, series.IsEmpty())
	require.True(t, series.AvgEntryPrice.IsZero())
}

func TestNewDCAThresholds(t *testing.T) {
	_, err := NewDCAThresholds(decimal.Zero, decimal.NewFromInt(1), 1)
	require.Error(t, err)
	_, err = NewDCAThresholds(decimal.NewFromInt(1), decimal.Zero, 1)
	require.Error(t, err)
	_, err = NewDCAThresholds(decimal.NewFromInt(1), decimal.NewFromInt(1), 0)
	require.Error(t, err)

	th, err := NewDCAThresholds(decimal.NewFromInt(2), decimal.NewFromInt(4), 3)
	require.NoError(t, err)
	require.Equal(t, 3, th.MaxTrades)
}
