// Command monte replays historical prices through trading strategies and reports the outcome.
// Runs are configured with a YAML file, the interactive wizard or single-run flags.
//
// Usage:
//
//	monte --config runs.yaml
//	monte --setup
//	monte --symbols BTC_USDT --csv candles.csv --strategy dca
//
// Optional environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/monte/config"
	"github.com/vadiminshakov/monte/internal"
	"github.com/vadiminshakov/monte/internal/report"
	"github.com/vadiminshakov/monte/internal/setup"
)

func main() {
	cfg, opts, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if opts.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		if cfg, err = config.Load(path); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := newLogger(opts.Debug)
	if err != nil {
		log.Fatal(err)
	}

	err = run(cfg, logger)
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := internal.NewSimulation(cfg, logger)
	if err != nil {
		logger.Error("failed to create simulation", zap.Error(err))
		return err
	}
	defer func() {
		if err := sim.Close(); err != nil {
			logger.Warn("failed to close stores", zap.Error(err))
		}
	}()

	rows, err := sim.Run(ctx)
	if len(rows) > 0 {
		fmt.Println(report.Summary(rows))
	}
	if err != nil {
		logger.Error("simulation failed", zap.Error(err))
		return err
	}

	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
