package marketdata

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

// StaticProvider serves frames held in memory. Each Load returns an independent copy,
// so one provider can feed concurrent runs.
type StaticProvider struct {
	frames []domain.TimeFrame
}

// NewStaticProvider creates a provider over frames.
func NewStaticProvider(frames []domain.TimeFrame) *StaticProvider {
	return &StaticProvider{frames: frames}
}

// Load returns the frames restricted to symbols.
func (p *StaticProvider) Load(ctx context.Context, symbols []string) (*domain.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames := make([]domain.TimeFrame, 0, len(p.frames))
	for _, f := range p.frames {
		prices := make(map[string]decimal.Decimal, len(symbols))
		frame := domain.NewTimeFrame(f.Time, prices)
		for _, symbol := range symbols {
			if price, ok := f.Prices[symbol]; ok {
				prices[symbol] = price
			}
			if candle, ok := f.Candles[symbol]; ok {
				frame.Candles[symbol] = candle
			}
		}
		frames = append(frames, frame)
	}

	for _, symbol := range symbols {
		if !p.has(symbol) {
			return nil, errors.Wrapf(domain.ErrUnknownSymbol, "no static data for %s", symbol)
		}
	}

	return domain.NewHistory(frames), nil
}

func (p *StaticProvider) has(symbol string) bool {
	for _, f := range p.frames {
		if _, ok := f.Prices[symbol]; ok {
			return true
		}
	}
	return false
}
