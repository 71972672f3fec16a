package internal

import (
	"context"
	"fmt"
	"os"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/monte/config"
	"github.com/vadiminshakov/monte/internal/clients"
	"github.com/vadiminshakov/monte/internal/engine"
	"github.com/vadiminshakov/monte/internal/marketdata"
)

// serviceProvider exposes the read-only market data services of an exchange client.
type serviceProvider interface {
	KlineProvider() marketdata.KlineProvider
}

// newServiceProvider dispatches on the client type. This is the single point of truth for
// platform-specific implementations.
func newServiceProvider(client any) (serviceProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c}, nil
	case *bybit.Client:
		return &bybitProvider{client: c}, nil
	case *clients.HyperliquidClient:
		return &hyperliquidProvider{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type binanceProvider struct {
	client *binance.Client
}

func (p *binanceProvider) KlineProvider() marketdata.KlineProvider {
	return marketdata.NewBinanceKlineProvider(p.client)
}

type bybitProvider struct {
	client *bybit.Client
}

func (p *bybitProvider) KlineProvider() marketdata.KlineProvider {
	return marketdata.NewBybitKlineProvider(p.client)
}

type hyperliquidProvider struct {
	client *clients.HyperliquidClient
}

func (p *hyperliquidProvider) KlineProvider() marketdata.KlineProvider {
	return marketdata.NewHyperliquidKlineProvider(p.client.Info())
}

// newClient creates the exchange client of an exchange-backed source. API keys are optional:
// historical klines are public.
func newClient(ctx context.Context, src config.Source) (any, error) {
	switch src.Type {
	case config.SourceBinance:
		return clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")), nil
	case config.SourceBybit:
		return clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET")), nil
	case config.SourceHyperliquid:
		return clients.NewHyperliquidClient(ctx, os.Getenv("HYPERLIQUID_PRIVATE_KEY"), src.URL)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", src.Type)
	}
}

// newHistoryProvider builds the history source of a run.
func newHistoryProvider(ctx context.Context, src config.Source, logger *zap.Logger) (engine.Provider, error) {
	if src.Type == config.SourceCSV {
		return marketdata.NewCSVProvider(src.Path, src.Price), nil
	}

	client, err := newClient(ctx, src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create exchange client")
	}

	sp, err := newServiceProvider(client)
	if err != nil {
		return nil, err
	}

	opts := []marketdata.ExchangeOption{
		marketdata.WithPriceField(src.Price),
		marketdata.WithLogger(logger),
	}
	if !src.End.IsZero() {
		opts = append(opts, marketdata.WithEnd(src.End))
	}

	return marketdata.NewExchangeProvider(sp.KlineProvider(), src.Interval, src.Limit, opts...)
}
