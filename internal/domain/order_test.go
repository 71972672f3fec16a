package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	now := time.Now()

	_, err := NewOrder(1, "A", 0, OrderTypeBuy, now, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrder(1, "A", -3, OrderTypeSell, now, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrder(1, "A", 1, OrderType(7), now, decimal.NewFromInt(1))
	assert.Error(t, err)

	order, err := NewOrder(4, "A", 3, OrderTypeSell, now, decimal.NewFromInt(12))
	require.NoError(t, err)
	assert.Equal(t, "#4 sell 3 A", order.String())
	assert.True(t, order.Notional(decimal.NewFromInt(12)).Equal(decimal.NewFromInt(36)))
}

func TestParseOrderType(t *testing.T) {
	buy, err := ParseOrderType("buy")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeBuy, buy)

	sell, err := ParseOrderType("sell")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeSell, sell)

	_, err = ParseOrderType("hold")
	assert.Error(t, err)
}

func TestSettlementRecord_KeepsRejectionReason(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	order, err := NewOrder(2, "A", 1, OrderTypeBuy, now, decimal.NewFromInt(30))
	require.NoError(t, err)

	processed := ProcessedOrder{
		Order:     order,
		Status:    OrderStatusRejected,
		Reason:    ErrInsufficientFunds,
		FillPrice: decimal.NewFromInt(30),
		SettledAt: now,
	}

	rec := NewSettlementRecord("run-1", processed)
	assert.Equal(t, "rejected", rec.Status)
	assert.Equal(t, "insufficient funds", rec.Reason)

	restored, err := rec.ToProcessedOrder()
	require.NoError(t, err)
	assert.ErrorIs(t, restored.Reason, ErrInsufficientFunds)
	assert.Equal(t, OrderStatusRejected, restored.Status)
	assert.False(t, restored.Filled())
}

func TestParsePair(t *testing.T) {
	pair, err := ParsePair("btc_usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTC_USDT", pair.String())
	assert.Equal(t, "BTCUSDT", pair.Symbol())

	for _, bad := range []string{"", "BTC", "BTC_", "_USDT", "A_B_C"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, bad)
	}
}
