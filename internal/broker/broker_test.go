package broker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/monte/internal/domain"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestBroker(t *testing.T, cash int64, symbols ...string) *Broker {
	t.Helper()

	b, err := New(decimal.NewFromInt(cash), zap.NewNop())
	require.NoError(t, err)
	for _, symbol := range symbols {
		require.NoError(t, b.Watch(symbol))
	}

	return b
}

func applyPrices(t *testing.T, b *Broker, at time.Time, prices map[string]int64) {
	t.Helper()

	p := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		p[symbol] = decimal.NewFromInt(price)
	}
	require.NoError(t, b.ApplyFrame(domain.NewTimeFrame(at, p)))
}

func collect(b *Broker) []domain.Asset {
	var out []domain.Asset
	for asset := range b.Assets() {
		out = append(out, asset)
	}
	return out
}

func TestBroker_New(t *testing.T) {
	_, err := New(decimal.NewFromInt(-1), nil)
	assert.Error(t, err)

	b, err := New(decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(100)))
	assert.Empty(t, b.Portfolio().Holdings)
}

func TestBroker_WatchIsIdempotent(t *testing.T) {
	once := newTestBroker(t, 100, "AAPL")
	twice := newTestBroker(t, 100, "AAPL", "AAPL")

	assert.Equal(t, collect(once), collect(twice))
	assert.Equal(t, []string{"AAPL"}, twice.Watched())

	err := twice.Watch("")
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestBroker_AssetsIsRestartable(t *testing.T) {
	b := newTestBroker(t, 100, "A", "B", "C")
	applyPrices(t, b, t0, map[string]int64{"A": 1, "B": 2, "C": 3})

	first := collect(b)
	second := collect(b)
	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "A", first[0].Symbol)
	assert.True(t, first[2].Price.Equal(decimal.NewFromInt(3)))

	var seen []string
	for asset := range b.Assets() {
		seen = append(seen, asset.Symbol)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestBroker_Asset(t *testing.T) {
	b := newTestBroker(t, 100, "A")

	asset, err := b.Asset("A")
	require.NoError(t, err)
	assert.False(t, asset.Priced)
	assert.True(t, asset.Watched)

	applyPrices(t, b, t0, map[string]int64{"A": 7})
	asset, err = b.Asset("A")
	require.NoError(t, err)
	assert.True(t, asset.Priced)
	assert.True(t, asset.Price.Equal(decimal.NewFromInt(7)))

	_, err = b.Asset("B")
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestBroker_PlaceOrderValidation(t *testing.T) {
	b := newTestBroker(t, 100, "A")
	applyPrices(t, b, t0, map[string]int64{"A": 10})

	_, err := b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase, "trading is closed by default")

	b.OpenTrading()

	_, err = b.PlaceOrder("A", 0, domain.OrderTypeBuy)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = b.PlaceOrder("A", -2, domain.OrderTypeSell)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = b.PlaceOrder("B", 1, domain.OrderTypeBuy)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)

	assert.Equal(t, 0, b.Pending())

	first, err := b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	require.NoError(t, err)
	second, err := b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderHandle(1), first)
	assert.Equal(t, domain.OrderHandle(2), second)
	assert.Equal(t, 2, b.Pending())

	b.CloseTrading()
	_, err = b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestBroker_SettleBuyAndSell(t *testing.T) {
	b := newTestBroker(t, 100, "A")
	applyPrices(t, b, t0, map[string]int64{"A": 30})

	b.OpenTrading()
	_, err := b.PlaceOrder("A", 2, domain.OrderTypeBuy)
	require.NoError(t, err)
	b.CloseTrading()

	processed := b.Settle(t0)
	require.Len(t, processed, 1)
	assert.True(t, processed[0].Filled())
	assert.True(t, processed[0].FillPrice.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, t0, processed[0].SettledAt)
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, int64(2), b.Portfolio().Holding("A"))

	t1 := t0.Add(time.Minute)
	applyPrices(t, b, t1, map[string]int64{"A": 45})
	assert.True(t, b.TotalValue().Equal(decimal.NewFromInt(130)))

	b.OpenTrading()
	_, err = b.PlaceOrder("A", 3, domain.OrderTypeSell)
	require.NoError(t, err)
	_, err = b.PlaceOrder("A", 2, domain.OrderTypeSell)
	require.NoError(t, err)
	b.CloseTrading()

	processed = b.Settle(t1)
	require.Len(t, processed, 2)
	assert.Equal(t, domain.OrderStatusRejected, processed[0].Status)
	assert.ErrorIs(t, processed[0].Reason, domain.ErrInsufficientHoldings)
	assert.True(t, processed[1].Filled())
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(130)))
	assert.Equal(t, int64(0), b.Portfolio().Holding("A"))
	assert.Equal(t, 0, b.Pending())
}

func TestBroker_SettleRejectsInsufficientFunds(t *testing.T) {
	b := newTestBroker(t, 10, "A")
	applyPrices(t, b, t0, map[string]int64{"A": 30})

	b.OpenTrading()
	_, err := b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	require.NoError(t, err)
	b.CloseTrading()

	processed := b.Settle(t0)
	require.Len(t, processed, 1)
	assert.Equal(t, domain.OrderStatusRejected, processed[0].Status)
	assert.ErrorIs(t, processed[0].Reason, domain.ErrInsufficientFunds)
	assert.Equal(t, domain.ErrInsufficientFunds, processed[0].Reason)
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(0), b.Portfolio().Holding("A"))
}

func TestBroker_SettleFirstSubmittedWins(t *testing.T) {
	b := newTestBroker(t, 50, "A", "B")
	applyPrices(t, b, t0, map[string]int64{"A": 40, "B": 30})

	b.OpenTrading()
	first, err := b.PlaceOrder("B", 1, domain.OrderTypeBuy)
	require.NoError(t, err)
	second, err := b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	require.NoError(t, err)
	b.CloseTrading()

	processed := b.Settle(t0)
	require.Len(t, processed, 2)
	assert.Equal(t, first, processed[0].Handle)
	assert.True(t, processed[0].Filled())
	assert.Equal(t, second, processed[1].Handle)
	assert.Equal(t, domain.OrderStatusRejected, processed[1].Status)
	assert.True(t, b.Portfolio().Cash.Equal(decimal.NewFromInt(20)))
}

func TestBroker_SettleRejectsUnpricedAsset(t *testing.T) {
	b := newTestBroker(t, 50, "A")
	applyPrices(t, b, t0, map[string]int64{"A": 5})
	require.NoError(t, b.Watch("LATE"))

	b.OpenTrading()
	_, err := b.PlaceOrder("LATE", 1, domain.OrderTypeBuy)
	require.NoError(t, err)
	b.CloseTrading()

	processed := b.Settle(t0)
	require.Len(t, processed, 1)
	assert.ErrorIs(t, processed[0].Reason, domain.ErrNoPrice)
	assert.True(t, processed[0].FillPrice.IsZero())
}

func TestBroker_Seal(t *testing.T) {
	b := newTestBroker(t, 50, "A")
	applyPrices(t, b, t0, map[string]int64{"A": 5})
	b.OpenTrading()
	b.Seal()

	_, err := b.PlaceOrder("A", 1, domain.OrderTypeBuy)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	assert.ErrorIs(t, b.Watch("B"), domain.ErrInvalidPhase)
	assert.ErrorIs(t, b.ApplyFrame(domain.NewTimeFrame(t0.Add(time.Minute), nil)), domain.ErrInvalidPhase)
}

func TestBroker_ApplyFrameRejectsNegativePrice(t *testing.T) {
	b := newTestBroker(t, 50, "A", "B")
	applyPrices(t, b, t0, map[string]int64{"A": 5, "B": 6})

	frame := domain.NewTimeFrame(t0.Add(time.Minute), map[string]decimal.Decimal{
		"A": decimal.NewFromInt(9),
		"B": decimal.NewFromInt(-1),
	})
	err := b.ApplyFrame(frame)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	asset, err := b.Asset("A")
	require.NoError(t, err)
	assert.True(t, asset.Price.Equal(decimal.NewFromInt(5)), "frame must not be partially applied")
	assert.Equal(t, t0, b.Now())
}

func TestBroker_ApplyFrameKeepsMissingPrices(t *testing.T) {
	b := newTestBroker(t, 50, "A", "B")
	applyPrices(t, b, t0, map[string]int64{"A": 5})
	applyPrices(t, b, t0.Add(time.Minute), map[string]int64{"B": 7})

	a, err := b.Asset("A")
	require.NoError(t, err)
	assert.True(t, a.Priced)
	assert.True(t, a.Price.Equal(decimal.NewFromInt(5)), "absent symbols keep the previous price")

	bAsset, err := b.Asset("B")
	require.NoError(t, err)
	assert.True(t, bAsset.Priced)
	assert.True(t, bAsset.Price.Equal(decimal.NewFromInt(7)))
	assert.True(t, b.TotalValue().Equal(decimal.NewFromInt(50)))
}

func TestBroker_ColumnsFollowFrames(t *testing.T) {
	b := newTestBroker(t, 50, "A")

	frame := domain.NewTimeFrame(t0, map[string]decimal.Decimal{"A": decimal.NewFromInt(5)})
	frame.SetColumn("A", "ema_3", decimal.NewFromInt(4))
	frame.SetColumn("IGNORED", "ema_3", decimal.NewFromInt(1))
	require.NoError(t, b.ApplyFrame(frame))

	v, ok := b.Column("A", "ema_3")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(4)))
	_, ok = b.Column("IGNORED", "ema_3")
	assert.False(t, ok)

	applyPrices(t, b, t0.Add(time.Minute), map[string]int64{"A": 6})
	_, ok = b.Column("A", "ema_3")
	assert.False(t, ok, "column values belong to a single frame")
}

func TestBroker_CashAndHoldingsNeverNegative(t *testing.T) {
	symbols := []string{"A", "B", "C"}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		b := newTestBroker(t, int64(rng.Intn(500)), symbols...)
		at := t0

		for frame := 0; frame < 50; frame++ {
			at = at.Add(time.Minute)
			prices := make(map[string]int64, len(symbols))
			for _, symbol := range symbols {
				prices[symbol] = int64(rng.Intn(100))
			}
			applyPrices(t, b, at, prices)

			b.OpenTrading()
			for n := rng.Intn(6); n > 0; n-- {
				orderType := domain.OrderTypeBuy
				if rng.Intn(2) == 0 {
					orderType = domain.OrderTypeSell
				}
				_, err := b.PlaceOrder(symbols[rng.Intn(len(symbols))], int64(rng.Intn(5)+1), orderType)
				require.NoError(t, err)
			}
			b.CloseTrading()

			for _, p := range b.Settle(at) {
				assert.Contains(t, []domain.OrderStatus{domain.OrderStatusFilled, domain.OrderStatusRejected}, p.Status)
			}

			snapshot := b.Portfolio()
			require.False(t, snapshot.Cash.IsNegative(), "cash went negative: %s", snapshot.Cash)
			for symbol, qty := range snapshot.Holdings {
				require.GreaterOrEqual(t, qty, int64(0), "holding of %s went negative", symbol)
			}
		}
	}
}

func TestBroker_Snapshot(t *testing.T) {
	b := newTestBroker(t, 100, "A")
	applyPrices(t, b, t0, map[string]int64{"A": 10})

	b.OpenTrading()
	_, err := b.PlaceOrder("A", 3, domain.OrderTypeBuy)
	require.NoError(t, err)
	b.CloseTrading()

	snapshot := b.Snapshot()
	assert.Equal(t, 1, snapshot.Pending)
	assert.Equal(t, t0, snapshot.Time)

	b.Settle(t0)
	snapshot = b.Snapshot()
	assert.Equal(t, 0, snapshot.Pending)
	assert.True(t, snapshot.Cash.Equal(decimal.NewFromInt(70)))
	assert.True(t, snapshot.TotalValue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(3), snapshot.Holdings["A"])

	snapshot.Holdings["A"] = 99
	assert.Equal(t, int64(3), b.Portfolio().Holding("A"), "snapshots are copies")
}
