package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/monte/internal/domain"
)

// HyperliquidKlineProvider implements KlineProvider for Hyperliquid.
type HyperliquidKlineProvider struct {
	info *hyperliquid.Info
}

// NewHyperliquidKlineProvider creates a new Hyperliquid kline provider.
func NewHyperliquidKlineProvider(info *hyperliquid.Info) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info}
}

// GetKlines fetches kline data. Hyperliquid candles are keyed by coin, so only the base
// of pair is used.
func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int, end time.Time) ([]domain.MarketCandle, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	dur, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	if end.IsZero() {
		end = time.Now()
	}
	endMs := end.UnixMilli()
	// two extra candles of slack for window rounding
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	coin := strings.ToUpper(pair.From)
	candles, err := p.info.CandlesSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles from Hyperliquid for %s", coin)
	}
	if len(candles) == 0 {
		return nil, errors.Wrapf(ErrNoKlines, "hyperliquid %s %s", coin, interval)
	}

	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, 0, len(candles))
	for i, c := range candles {
		candle, err := parseCandle(c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "hyperliquid candle at index %d", i)
		}
		candle.OpenTime = time.UnixMilli(c.TimeOpen).UTC()
		candle.CloseTime = time.UnixMilli(c.TimeClose).UTC()
		out = append(out, candle)
	}

	return out, nil
}
