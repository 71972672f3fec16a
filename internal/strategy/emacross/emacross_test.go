package emacross

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

var start = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

// columnFrame builds a frame with explicit fast and slow column values.
func columnFrame(i int, price, fast, slow int64) domain.TimeFrame {
	f := domain.NewTimeFrame(start.Add(time.Duration(i)*time.Hour), map[string]decimal.Decimal{
		"A": decimal.NewFromInt(price),
	})
	f.SetColumn("A", "ema_2", decimal.NewFromInt(fast))
	f.SetColumn("A", "ema_5", decimal.NewFromInt(slow))
	return f
}

func TestNew(t *testing.T) {
	_, err := New("x", []string{"A"}, Params{FastPeriod: 5, SlowPeriod: 5, Quantity: 1}, nil)
	assert.Error(t, err)
	_, err = New("x", []string{"A"}, Params{FastPeriod: 2, SlowPeriod: 5}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = New("x", nil, Params{FastPeriod: 2, SlowPeriod: 5, Quantity: 1}, nil)
	assert.Error(t, err)

	s, err := New("x", []string{"A"}, Params{FastPeriod: 2, SlowPeriod: 5, Quantity: 1}, nil)
	require.NoError(t, err)
	cols := s.DerivedColumns()
	require.Len(t, cols, 2)
	assert.Equal(t, "ema_2", cols[0].Name())
	assert.Equal(t, "ema_5", cols[1].Name())
}

func TestEMACross_TradesOnCrosses(t *testing.T) {
	b, err := broker.New(decimal.NewFromInt(100), zap.NewNop())
	require.NoError(t, err)
	s, err := New("x", []string{"A"}, Params{FastPeriod: 2, SlowPeriod: 5, Quantity: 2}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Startup(b))

	// training ends in a downtrend
	require.NoError(t, b.ApplyFrame(columnFrame(0, 10, 9, 10)))
	require.NoError(t, s.Train())

	var processed []domain.ProcessedOrder
	step := func(f domain.TimeFrame) {
		require.NoError(t, b.ApplyFrame(f))
		b.OpenTrading()
		require.NoError(t, s.RunOneTimeFrame(f.Time, processed))
		b.CloseTrading()
		processed = b.Settle(f.Time)
	}

	step(columnFrame(1, 10, 9, 10))
	assert.Empty(t, processed, "no cross, no trade")

	step(columnFrame(2, 12, 11, 10))
	require.Len(t, processed, 1)
	assert.Equal(t, domain.OrderTypeBuy, processed[0].Type)
	assert.Equal(t, int64(2), b.Portfolio().Holding("A"))

	spread, ok := s.Spread("A")
	require.True(t, ok)
	assert.True(t, spread.Equal(decimal.NewFromInt(1)))

	step(columnFrame(3, 13, 12, 10))
	assert.Empty(t, processed, "trend continues")

	step(columnFrame(4, 8, 9, 10))
	require.Len(t, processed, 1)
	assert.Equal(t, domain.OrderTypeSell, processed[0].Type)
	assert.Equal(t, int64(0), b.Portfolio().Holding("A"))
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(92)))
}

func TestEMACross_NoColumnsNoTrades(t *testing.T) {
	b, err := broker.New(decimal.NewFromInt(100), zap.NewNop())
	require.NoError(t, err)
	s, err := New("x", []string{"A"}, Params{FastPeriod: 2, SlowPeriod: 5, Quantity: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Startup(b))
	require.NoError(t, s.Train())

	for i := 0; i < 3; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		require.NoError(t, b.ApplyFrame(domain.NewTimeFrame(at, map[string]decimal.Decimal{"A": decimal.NewFromInt(int64(10 + i))})))
		b.OpenTrading()
		require.NoError(t, s.RunOneTimeFrame(at, nil))
		b.CloseTrading()
	}
	assert.Equal(t, 0, b.Pending())
}
