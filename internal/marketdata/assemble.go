package marketdata

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

// Assemble aligns per-symbol candle series into frames. Only open times present in every
// series become frames, so every frame prices every symbol. Duplicate open times keep the
// last candle.
func Assemble(series map[string][]domain.MarketCandle, field PriceField) (*domain.History, error) {
	if len(series) == 0 {
		return nil, errors.New("no candle series to assemble")
	}

	byTime := make(map[string]map[int64]domain.MarketCandle, len(series))
	var common map[int64]struct{}

	for symbol, candles := range series {
		if len(candles) == 0 {
			return nil, errors.Wrapf(domain.ErrInvalidFrame, "no candles for %s", symbol)
		}

		indexed := make(map[int64]domain.MarketCandle, len(candles))
		for _, c := range candles {
			if c.Open.IsNegative() || c.Close.IsNegative() {
				return nil, errors.Wrapf(domain.ErrInvalidPrice, "%s candle at %s", symbol, c.OpenTime.Format(time.RFC3339))
			}
			indexed[c.OpenTime.UnixNano()] = c
		}
		byTime[symbol] = indexed

		if common == nil {
			common = make(map[int64]struct{}, len(indexed))
			for ts := range indexed {
				common[ts] = struct{}{}
			}
			continue
		}
		for ts := range common {
			if _, ok := indexed[ts]; !ok {
				delete(common, ts)
			}
		}
	}

	if len(common) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidFrame, "candle series share no timestamps")
	}

	stamps := make([]int64, 0, len(common))
	for ts := range common {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	frames := make([]domain.TimeFrame, len(stamps))
	for i, ts := range stamps {
		prices := make(map[string]decimal.Decimal, len(byTime))
		frame := domain.NewTimeFrame(time.Unix(0, ts).UTC(), prices)
		for symbol, indexed := range byTime {
			c := indexed[ts]
			frame.Candles[symbol] = c
			if field == PriceOpen {
				prices[symbol] = c.Open
			} else {
				prices[symbol] = c.Close
			}
		}
		frames[i] = frame
	}

	return domain.NewHistory(frames), nil
}
