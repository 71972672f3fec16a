// Package marketdata loads the price history a simulation replays: from memory, from CSV files
// or from exchange kline endpoints. Every source is turned into frames by Assemble.
package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/monte/internal/domain"
)

// ErrNoKlines is returned when an exchange has no candles for the requested window.
var ErrNoKlines = errors.New("no klines returned")

// Provider loads the history of symbols.
type Provider interface {
	Load(ctx context.Context, symbols []string) (*domain.History, error)
}

// KlineProvider fetches up to limit candles of pair ending at end (zero means now),
// in chronological order.
type KlineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int, end time.Time) ([]domain.MarketCandle, error)
}

// PriceField selects which candle price becomes the frame price.
type PriceField string

const (
	PriceClose PriceField = "close"
	PriceOpen  PriceField = "open"
)

// ParsePriceField parses a field name. Empty selects PriceClose.
func ParsePriceField(s string) (PriceField, error) {
	switch PriceField(strings.ToLower(s)) {
	case "", PriceClose:
		return PriceClose, nil
	case PriceOpen:
		return PriceOpen, nil
	default:
		return "", errors.Errorf("unknown price field %q", s)
	}
}

// ParseInterval converts an interval such as "1m", "4h", "1d" or "1w" to a duration.
func ParseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, errors.Errorf("invalid interval: %q", interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid interval number: %q", interval)
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("unsupported interval unit: %c", unit)
	}
}
