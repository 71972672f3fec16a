// Package columns computes derived per-frame columns (moving averages, oscillators) for a history
// and attaches them to its frames, where strategies read them through the broker.
package columns

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/pkg/indicators"
	"go.uber.org/zap"
)

// Column is a named series derived from the candles of one symbol.
// Compute returns values aligned to the end of candles; it may return fewer values than candles.
type Column interface {
	Name() string
	Compute(candles []domain.MarketCandle) ([]decimal.Decimal, error)
}

type periodColumn struct {
	kind   string
	period int
	calc   func([]decimal.Decimal, int) ([]decimal.Decimal, error)
}

func (c periodColumn) Name() string {
	return fmt.Sprintf("%s_%d", c.kind, c.period)
}

func (c periodColumn) Compute(candles []domain.MarketCandle) ([]decimal.Decimal, error) {
	return c.calc(closes(candles), c.period)
}

// SMA simple moving average of close prices.
func SMA(period int) Column {
	return periodColumn{kind: "sma", period: period, calc: indicators.CalculateSMA}
}

// EMA exponential moving average of close prices.
func EMA(period int) Column {
	return periodColumn{kind: "ema", period: period, calc: indicators.CalculateEMA}
}

// RSI relative strength index of close prices.
func RSI(period int) Column {
	return periodColumn{kind: "rsi", period: period, calc: indicators.CalculateRSI}
}

type macdColumn struct{}

// MACD line of the 12/26/9 configuration.
func MACD() Column {
	return macdColumn{}
}

func (macdColumn) Name() string {
	return "macd"
}

func (macdColumn) Compute(candles []domain.MarketCandle) ([]decimal.Decimal, error) {
	return indicators.CalculateMACD(closes(candles))
}

type atrColumn struct {
	period int
}

// ATR average true range over high, low and close.
func ATR(period int) Column {
	return atrColumn{period: period}
}

func (c atrColumn) Name() string {
	return fmt.Sprintf("atr_%d", c.period)
}

func (c atrColumn) Compute(candles []domain.MarketCandle) ([]decimal.Decimal, error) {
	data := make([]indicators.PriceData, len(candles))
	for i, candle := range candles {
		data[i] = indicators.PriceData{Open: candle.Open, High: candle.High, Low: candle.Low, Close: candle.Close}
	}
	return indicators.CalculateATR(data, c.period)
}

// Parse builds a column from its name, e.g. "ema_20", "rsi_14", "macd".
func Parse(name string) (Column, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "macd" {
		return MACD(), nil
	}

	kind, rawPeriod, ok := strings.Cut(name, "_")
	if !ok {
		return nil, errors.Errorf("invalid column %q, expected <kind>_<period>", name)
	}
	period, err := strconv.Atoi(rawPeriod)
	if err != nil || period < 1 {
		return nil, errors.Errorf("invalid period in column %q", name)
	}

	switch kind {
	case "sma":
		return SMA(period), nil
	case "ema":
		return EMA(period), nil
	case "rsi":
		return RSI(period), nil
	case "atr":
		return ATR(period), nil
	default:
		return nil, errors.Errorf("unknown column kind %q", kind)
	}
}

// Attach computes every column for every symbol and stores the values on the frames of history.
// Frames within a column's warm-up period get no value. A column that cannot be computed for lack
// of data is skipped with a warning; any other failure is returned.
func Attach(history *domain.History, symbols []string, cols []Column, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil || len(cols) == 0 {
		return nil
	}

	for _, symbol := range symbols {
		candles := history.Candles(symbol)
		indexes := history.FrameIndexes(symbol)

		for _, col := range cols {
			values, err := col.Compute(candles)
			if err != nil {
				if errors.Is(err, indicators.ErrNotEnoughData) || errors.Is(err, indicators.ErrNotFinite) {
					logger.Warn("derived column skipped",
						zap.String("symbol", symbol),
						zap.String("column", col.Name()),
						zap.Int("candles", len(candles)),
						zap.Error(err))
					continue
				}
				return errors.Wrapf(err, "compute %s for %s", col.Name(), symbol)
			}
			if len(values) > len(indexes) {
				values = values[len(values)-len(indexes):]
			}

			offset := len(indexes) - len(values)
			for i, value := range values {
				history.Frames[indexes[offset+i]].SetColumn(symbol, col.Name(), value)
			}
		}
	}

	return nil
}

func closes(candles []domain.MarketCandle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, candle := range candles {
		out[i] = candle.Close
	}
	return out
}
