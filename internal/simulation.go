package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/monte/config"
	"github.com/vadiminshakov/monte/internal/engine"
	"github.com/vadiminshakov/monte/internal/report"
	"github.com/vadiminshakov/monte/internal/storage/equity"
	"github.com/vadiminshakov/monte/internal/storage/ledger"
	"github.com/vadiminshakov/monte/internal/storage/runresult"
)

// Simulation runs a batch of configured simulations and persists their artifacts.
type Simulation struct {
	cfg    *config.Config
	logger *zap.Logger

	strategies *strategyFactory
	ledgers    map[string]*ledger.WALStore
	equities   map[string]*equity.WALStore
	results    map[string]*runresult.Store

	// providerFn builds a history source; replaced in tests.
	providerFn func(ctx context.Context, src config.Source, logger *zap.Logger) (engine.Provider, error)
}

// NewSimulation creates a simulation batch for cfg.
func NewSimulation(cfg *config.Config, logger *zap.Logger) (*Simulation, error) {
	if cfg == nil || len(cfg.Runs) == 0 {
		return nil, errors.New("no runs configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Simulation{
		cfg:        cfg,
		logger:     logger,
		strategies: newStrategyFactory(logger),
		ledgers:    make(map[string]*ledger.WALStore),
		equities:   make(map[string]*equity.WALStore),
		results:    make(map[string]*runresult.Store),
		providerFn: newHistoryProvider,
	}, nil
}

// Run executes every configured run and returns one summary row per run, in configuration order.
// Runs execute concurrently up to the configured parallelism.
func (s *Simulation) Run(ctx context.Context) ([]report.Row, error) {
	engines := make([]*engine.Engine, 0, len(s.cfg.Runs))
	for _, run := range s.cfg.Runs {
		e, err := s.newEngine(ctx, run)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create run %s", run.Name)
		}
		engines = append(engines, e)
	}

	results, runErr := engine.RunBatch(ctx, s.cfg.Parallelism, engines...)

	rows := make([]report.Row, 0, len(s.cfg.Runs))
	for i, run := range s.cfg.Runs {
		res := results[i]
		if res == nil {
			err := runErr
			if err == nil {
				err = errors.New("not completed")
			}
			rows = append(rows, report.NewRow(run.Name, run.StartingCash, nil, err))
			continue
		}

		rows = append(rows, report.NewRow(run.Name, run.StartingCash, res, nil))

		if err := s.saveResult(run, res); err != nil {
			s.logger.Warn("failed to save run result", zap.String("run", run.Name), zap.Error(err))
		}
	}

	if runErr != nil {
		return rows, runErr
	}

	return rows, nil
}

// Close closes the opened stores. It is safe to call more than once.
func (s *Simulation) Close() error {
	var firstErr error
	for dir, store := range s.ledgers {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close ledger %s", dir)
		}
	}
	for dir, store := range s.equities {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close equity store %s", dir)
		}
	}
	clear(s.ledgers)
	clear(s.equities)

	return firstErr
}

func (s *Simulation) newEngine(ctx context.Context, run config.Run) (*engine.Engine, error) {
	strat, err := s.strategies.createStrategy(run)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(zap.String("run", run.Name))

	provider, err := s.providerFn(ctx, run.Source, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create history provider")
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithReporter(report.NewLogReporter(logger)),
	}

	if dir := run.Storage.LedgerDir; dir != "" {
		store, err := s.ledger(dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithLedger(store))
	}

	if dir := run.Storage.EquityDir; dir != "" {
		store, err := s.equity(dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithEquityRecorder(store))
	}

	return engine.New(engine.Config{
		StartingCash:   run.StartingCash,
		TrainingFrames: run.TrainingFrames,
		Settlement:     run.Settlement,
	}, strat, provider, opts...)
}

// ledger returns the store for dir. Runs sharing a directory share the WAL; records are keyed by run id.
func (s *Simulation) ledger(dir string) (*ledger.WALStore, error) {
	if store, ok := s.ledgers[dir]; ok {
		return store, nil
	}

	store, err := ledger.NewWALStore(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settlement ledger")
	}
	s.ledgers[dir] = store

	return store, nil
}

func (s *Simulation) equity(dir string) (*equity.WALStore, error) {
	if store, ok := s.equities[dir]; ok {
		return store, nil
	}

	store, err := equity.NewWALStore(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open equity store")
	}
	s.equities[dir] = store

	return store, nil
}

func (s *Simulation) saveResult(run config.Run, res *engine.Result) error {
	dir := run.Storage.ResultsDir
	if dir == "" {
		return nil
	}

	store, ok := s.results[dir]
	if !ok {
		var err error
		if store, err = runresult.NewStore(dir); err != nil {
			return err
		}
		s.results[dir] = store
	}

	return store.Save(runresult.NewDocument(run.Name, run.StartingCash, res, time.Now().UTC()))
}
