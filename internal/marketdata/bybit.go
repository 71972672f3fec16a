package marketdata

import (
	"context"
	"sort"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/monte/internal/domain"
)

const bybitMaxPerRequest = 200

// BybitKlineProvider implements KlineProvider for Bybit spot.
type BybitKlineProvider struct {
	client *bybit.Client
	// pause between pages to stay under the public rate limit
	pause time.Duration
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client, pause: 100 * time.Millisecond}
}

// GetKlines fetches kline data, paging backwards from end.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int, end time.Time) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}
	step, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	var endMs *int64
	if !end.IsZero() {
		ms := end.UnixMilli()
		endMs = &ms
	}

	var all []bybit.V5GetKlineItem
	for remaining := limit; remaining > 0; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := min(remaining, bybitMaxPerRequest)
		param := bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   bybit.SymbolV5(pair.Symbol()),
			Interval: bybit.Interval(bybitInterval),
			End:      endMs,
			Limit:    &batch,
		}

		result, err := p.client.V5().Market().GetKline(param)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", pair.String())
		}
		if result == nil {
			return nil, errors.Errorf("empty result from Bybit API for %s", pair.String())
		}

		page := result.Result.List
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		remaining -= len(page)
		if len(page) < batch {
			break
		}

		// pages are newest first
		oldest, err := parseTimestamp(page[len(page)-1].StartTime)
		if err != nil {
			return nil, err
		}
		next := oldest.Add(-step).UnixMilli()
		endMs = &next

		if remaining > 0 && p.pause > 0 {
			time.Sleep(p.pause)
		}
	}

	if len(all) == 0 {
		return nil, errors.Wrapf(ErrNoKlines, "bybit %s %s", pair.String(), interval)
	}

	candles := make([]domain.MarketCandle, 0, len(all))
	for i, k := range all {
		openTime, err := parseTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		candle, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline at index %d", i)
		}
		candle.OpenTime = openTime
		candle.CloseTime = openTime.Add(step)
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	return candles, nil
}

// convertIntervalToBybit converts standard interval format to Bybit format.
// Standard format: "1m", "5m", "15m", "1h", "4h", "1d", etc.
// Bybit format: "1", "5", "15", "60", "240", "D", etc.
func convertIntervalToBybit(interval string) (string, error) {
	if len(interval) < 2 {
		return "", errors.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return "", errors.Errorf("invalid interval number: %s", interval)
	}

	switch unit {
	case 'm':
		return strconv.Itoa(n), nil
	case 'h':
		return strconv.Itoa(n * 60), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseTimestamp converts Bybit timestamp string (milliseconds) to time.Time.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", ts)
	}
	return time.UnixMilli(ms).UTC(), nil
}
