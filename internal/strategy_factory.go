package internal

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/monte/config"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/strategy"
	"github.com/vadiminshakov/monte/internal/strategy/buyandhold"
	"github.com/vadiminshakov/monte/internal/strategy/dca"
	"github.com/vadiminshakov/monte/internal/strategy/emacross"
)

const (
	StrategyBuyAndHold = "buy_and_hold"
	StrategyDCA        = "dca"
	StrategyEMACross   = "ema_cross"
)

// strategyFactory creates strategies from run configuration.
type strategyFactory struct {
	logger *zap.Logger
}

func newStrategyFactory(logger *zap.Logger) *strategyFactory {
	return &strategyFactory{logger: logger}
}

// createStrategy creates a strategy instance based on the run's strategy tag.
func (f *strategyFactory) createStrategy(run config.Run) (strategy.Strategy, error) {
	logger := f.logger.With(zap.String("run", run.Name))

	switch run.Strategy {
	case StrategyBuyAndHold:
		s, err := buyandhold.New(run.Name, run.Symbols, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create buy and hold strategy")
		}
		return s, nil
	case StrategyDCA:
		return f.createDCAStrategy(run, logger)
	case StrategyEMACross:
		s, err := emacross.New(run.Name, run.Symbols, emacross.Params{
			FastPeriod: run.Params.FastPeriod,
			SlowPeriod: run.Params.SlowPeriod,
			Quantity:   run.Params.Quantity,
		}, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create EMA cross strategy")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported strategy type: %s", run.Strategy)
	}
}

func (f *strategyFactory) createDCAStrategy(run config.Run, logger *zap.Logger) (strategy.Strategy, error) {
	thresholds, err := domain.NewDCAThresholds(
		run.Params.DcaPercentThresholdBuy,
		run.Params.DcaPercentThresholdSell,
		run.Params.MaxDcaTrades,
	)
	if err != nil {
		return nil, errors.Wrap(err, "invalid DCA thresholds")
	}

	dcaStrategy, err := dca.NewDCAStrategy(run.Name, run.Symbols, dca.Params{
		Quantity:   run.Params.Quantity,
		Thresholds: thresholds,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DCA strategy")
	}

	return dcaStrategy, nil
}
