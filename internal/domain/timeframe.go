package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// FlatCandle builds a candle whose OHLC values all equal price.
func FlatCandle(at time.Time, price decimal.Decimal) MarketCandle {
	return MarketCandle{
		OpenTime:  at,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    decimal.Zero,
		CloseTime: at,
	}
}

// TimeFrame one discrete step of simulated time with its market data snapshot.
type TimeFrame struct {
	Time time.Time
	// Prices symbol -> price used for valuation and settlement.
	Prices map[string]decimal.Decimal
	// Candles optional symbol -> source candle.
	Candles map[string]MarketCandle
	// Columns symbol -> derived column name -> value.
	Columns map[string]map[string]decimal.Decimal
}

// NewTimeFrame constructs a TimeFrame.
func NewTimeFrame(at time.Time, prices map[string]decimal.Decimal) TimeFrame {
	if prices == nil {
		prices = make(map[string]decimal.Decimal)
	}
	return TimeFrame{
		Time:    at,
		Prices:  prices,
		Candles: make(map[string]MarketCandle),
		Columns: make(map[string]map[string]decimal.Decimal),
	}
}

// Price returns the price of symbol in this frame.
func (f TimeFrame) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := f.Prices[symbol]
	return p, ok
}

// Column returns a derived column value of symbol in this frame.
func (f TimeFrame) Column(symbol, name string) (decimal.Decimal, bool) {
	cols, ok := f.Columns[symbol]
	if !ok {
		return decimal.Zero, false
	}
	v, ok := cols[name]
	return v, ok
}

// SetColumn stores a derived column value.
func (f *TimeFrame) SetColumn(symbol, name string, value decimal.Decimal) {
	if f.Columns == nil {
		f.Columns = make(map[string]map[string]decimal.Decimal)
	}
	cols, ok := f.Columns[symbol]
	if !ok {
		cols = make(map[string]decimal.Decimal)
		f.Columns[symbol] = cols
	}
	cols[name] = value
}

// History ordered sequence of time frames loaded for a run.
type History struct {
	Frames []TimeFrame
}

// NewHistory constructs a History.
func NewHistory(frames []TimeFrame) *History {
	return &History{Frames: frames}
}

// Len returns the number of frames.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Frames)
}

// Validate checks strictly increasing timestamps, non-negative prices
// and that every symbol is present in every frame.
func (h *History) Validate(symbols []string) error {
	if h == nil {
		return errors.Wrap(ErrInvalidFrame, "history is nil")
	}

	for i, frame := range h.Frames {
		if i > 0 && !frame.Time.After(h.Frames[i-1].Time) {
			return errors.Wrapf(ErrInvalidFrame, "frame %d at %s is not after %s",
				i, frame.Time.Format(time.RFC3339), h.Frames[i-1].Time.Format(time.RFC3339))
		}
		for symbol, price := range frame.Prices {
			if price.IsNegative() {
				return errors.Wrapf(ErrInvalidPrice, "%s price %s at frame %d", symbol, price.String(), i)
			}
		}
		for _, symbol := range symbols {
			if _, ok := frame.Prices[symbol]; !ok {
				return errors.Wrapf(ErrInvalidFrame, "frame %d at %s has no price for %s",
					i, frame.Time.Format(time.RFC3339), symbol)
			}
		}
	}

	return nil
}

// Split divides the history into training and testing frames.
func (h *History) Split(trainingFrames int) (training, testing []TimeFrame, err error) {
	if trainingFrames < 0 || trainingFrames > h.Len() {
		return nil, nil, errors.Errorf("training frames must be within [0, %d], got %d", h.Len(), trainingFrames)
	}
	return h.Frames[:trainingFrames], h.Frames[trainingFrames:], nil
}

// Candles returns the candle series of symbol across all frames that carry it.
// Frames without a source candle contribute a flat candle at the frame price.
func (h *History) Candles(symbol string) []MarketCandle {
	if h == nil {
		return nil
	}

	out := make([]MarketCandle, 0, len(h.Frames))
	for _, frame := range h.Frames {
		if candle, ok := frame.Candles[symbol]; ok {
			out = append(out, candle)
			continue
		}
		if price, ok := frame.Prices[symbol]; ok {
			out = append(out, FlatCandle(frame.Time, price))
		}
	}

	return out
}

// FrameIndexes returns the indexes of frames carrying symbol, aligned with Candles(symbol).
func (h *History) FrameIndexes(symbol string) []int {
	if h == nil {
		return nil
	}

	out := make([]int, 0, len(h.Frames))
	for i, frame := range h.Frames {
		if _, ok := frame.Prices[symbol]; ok {
			out = append(out, i)
		}
	}

	return out
}
