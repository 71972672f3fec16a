package marketdata

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/pkg/retrier"
	"go.uber.org/zap"
)

// ExchangeProvider loads history from an exchange kline endpoint with retries.
type ExchangeProvider struct {
	klines   KlineProvider
	interval string
	limit    int
	end      time.Time
	field    PriceField
	retrier  *retrier.Retrier
	l        *zap.Logger
}

// ExchangeOption configures an ExchangeProvider.
type ExchangeOption func(*ExchangeProvider)

// WithEnd fixes the end of the loaded window, making repeated loads return the same candles.
func WithEnd(end time.Time) ExchangeOption {
	return func(p *ExchangeProvider) {
		p.end = end
	}
}

// WithPriceField selects the candle price used as frame price.
func WithPriceField(field PriceField) ExchangeOption {
	return func(p *ExchangeProvider) {
		p.field = field
	}
}

// WithRetrier overrides the default retry policy.
func WithRetrier(r *retrier.Retrier) ExchangeOption {
	return func(p *ExchangeProvider) {
		p.retrier = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExchangeOption {
	return func(p *ExchangeProvider) {
		if l != nil {
			p.l = l
		}
	}
}

// NewExchangeProvider creates a provider fetching limit candles of interval per symbol.
func NewExchangeProvider(klines KlineProvider, interval string, limit int, opts ...ExchangeOption) (*ExchangeProvider, error) {
	if klines == nil {
		return nil, errors.New("kline provider is required")
	}
	if _, err := ParseInterval(interval); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Errorf("limit must be > 0, got %d", limit)
	}

	p := &ExchangeProvider{
		klines:   klines,
		interval: interval,
		limit:    limit,
		field:    PriceClose,
		l:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retrier == nil {
		p.retrier = retrier.New(
			retrier.WithMaxRetries(3),
			retrier.WithInitialInterval(500*time.Millisecond),
			retrier.WithRetryIf(retryable),
			retrier.WithOnRetry(func(attempt int, err error) {
				p.l.Warn("kline request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			}),
		)
	}

	return p, nil
}

// Load fetches candles for every symbol and assembles frames. Symbols are BASE_QUOTE pairs.
func (p *ExchangeProvider) Load(ctx context.Context, symbols []string) (*domain.History, error) {
	series := make(map[string][]domain.MarketCandle, len(symbols))

	for _, symbol := range symbols {
		pair, err := domain.ParsePair(symbol)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrUnknownSymbol, "%s: %v", symbol, err)
		}

		candles, err := retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) ([]domain.MarketCandle, error) {
			return p.klines.GetKlines(ctx, pair, p.interval, p.limit, p.end)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "fetch klines for %s", symbol)
		}

		p.l.Info("klines loaded",
			zap.String("symbol", symbol),
			zap.String("interval", p.interval),
			zap.Int("candles", len(candles)))
		series[symbol] = candles
	}

	return Assemble(series, p.field)
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrNoKlines)
}
