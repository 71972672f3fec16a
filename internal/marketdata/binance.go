package marketdata

import (
	"context"
	"sort"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

const binanceMaxPerRequest = 1000

// BinanceKlineProvider implements KlineProvider for Binance exchange.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance, paging backwards from end.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int, end time.Time) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	var klines []*binance.Kline
	endMs := int64(0)
	if !end.IsZero() {
		endMs = end.UnixMilli()
	}

	for remaining := limit; remaining > 0; {
		batch := min(remaining, binanceMaxPerRequest)

		svc := p.client.NewKlinesService().
			Symbol(pair.Symbol()).
			Interval(interval).
			Limit(batch)
		if endMs > 0 {
			svc = svc.EndTime(endMs)
		}

		page, err := svc.Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair.String())
		}
		if len(page) == 0 {
			break
		}

		klines = append(page, klines...)
		remaining -= len(page)
		if len(page) < batch {
			break
		}
		endMs = page[0].OpenTime - 1
	}

	if len(klines) == 0 {
		return nil, errors.Wrapf(ErrNoKlines, "binance %s %s", pair.String(), interval)
	}

	sort.Slice(klines, func(i, j int) bool {
		return klines[i].OpenTime < klines[j].OpenTime
	})

	result := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		candle, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "binance kline at index %d", i)
		}
		candle.OpenTime = time.UnixMilli(k.OpenTime).UTC()
		candle.CloseTime = time.UnixMilli(k.CloseTime).UTC()
		result[i] = candle
	}

	return result, nil
}

// parseCandle parses exchange price strings.
func parseCandle(open, high, low, closePrice, volume string) (domain.MarketCandle, error) {
	var (
		c   domain.MarketCandle
		err error
	)

	if c.Open, err = decimal.NewFromString(open); err != nil {
		return c, errors.Wrap(err, "failed to parse open price")
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return c, errors.Wrap(err, "failed to parse high price")
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return c, errors.Wrap(err, "failed to parse low price")
	}
	if c.Close, err = decimal.NewFromString(closePrice); err != nil {
		return c, errors.Wrap(err, "failed to parse close price")
	}
	if c.Volume, err = decimal.NewFromString(volume); err != nil {
		return c, errors.Wrap(err, "failed to parse volume")
	}

	return c, nil
}
