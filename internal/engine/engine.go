// Package engine drives a strategy through the simulation lifecycle:
// startup, training, one call per testing frame and cleanup.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/broker"
	"github.com/vadiminshakov/monte/internal/columns"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/strategy"
	"go.uber.org/zap"
)

// SettlementRule selects the price queued orders settle at.
type SettlementRule string

const (
	// SettleAtSubmission settles orders when the strategy's frame returns, at that frame's price.
	SettleAtSubmission SettlementRule = "submission"
	// SettleAtNextOpen settles orders at the start of the next frame, at its price.
	SettleAtNextOpen SettlementRule = "next_open"
)

// ParseSettlementRule parses a rule name. Empty selects SettleAtSubmission.
func ParseSettlementRule(s string) (SettlementRule, error) {
	switch SettlementRule(s) {
	case "", SettleAtSubmission:
		return SettleAtSubmission, nil
	case SettleAtNextOpen:
		return SettleAtNextOpen, nil
	default:
		return "", errors.Errorf("unknown settlement rule %q", s)
	}
}

// Provider loads the history of the watched symbols.
type Provider interface {
	Load(ctx context.Context, symbols []string) (*domain.History, error)
}

// Reporter receives the broker state after every testing frame. Failures are its own concern.
type Reporter interface {
	Report(name string, snapshot domain.BrokerSnapshot, at time.Time)
}

// Ledger stores settlement records.
type Ledger interface {
	Append(record domain.SettlementRecord) error
}

// EquityRecorder stores per-frame portfolio snapshots.
type EquityRecorder interface {
	Save(snapshot domain.BalanceSnapshot) error
}

// Config plain values a run is constructed with.
type Config struct {
	StartingCash   decimal.Decimal
	TrainingFrames int
	Settlement     SettlementRule
}

// HookError reports a strategy hook failure and aborts the run.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("strategy hook %s failed: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Result outcome of a completed run.
type Result struct {
	RunID       string
	Strategy    string
	Settlement  SettlementRule
	Frames      int
	Processed   []domain.ProcessedOrder
	Final       domain.PortfolioSnapshot
	TotalValue  decimal.Decimal
	Fingerprint string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// WithReporter sets the per-frame reporter.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithLedger sets the settlement ledger.
func WithLedger(l Ledger) Option {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithEquityRecorder sets the equity snapshot store.
func WithEquityRecorder(r EquityRecorder) Option {
	return func(e *Engine) {
		e.equity = r
	}
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.runID = id
		}
	}
}

// Engine runs exactly one strategy instance once. It owns the strategy's broker.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	provider Provider
	broker   *broker.Broker
	l        *zap.Logger
	reporter Reporter
	ledger   Ledger
	equity   EquityRecorder
	runID    string

	phase     domain.Phase
	lastFrame time.Time
	hasFrame  bool
	frames    int
	// undelivered holds results the strategy receives with the next frame.
	undelivered []domain.ProcessedOrder
	processed   []domain.ProcessedOrder
	fingerprint *Fingerprint
}

// New creates an engine. provider may be nil when the caller drives the lifecycle itself.
func New(cfg Config, s strategy.Strategy, provider Provider, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, errors.New("strategy is required")
	}
	if cfg.TrainingFrames < 0 {
		return nil, errors.Errorf("training frames must be non-negative, got %d", cfg.TrainingFrames)
	}
	rule, err := ParseSettlementRule(string(cfg.Settlement))
	if err != nil {
		return nil, err
	}
	cfg.Settlement = rule

	e := &Engine{
		cfg:         cfg,
		strategy:    s,
		provider:    provider,
		l:           zap.NewNop(),
		runID:       uuid.NewString(),
		phase:       domain.PhaseUnstarted,
		fingerprint: NewFingerprint(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.l = e.l.With(zap.String("run_id", e.runID), zap.String("strategy", s.Name()))

	e.broker, err = broker.New(cfg.StartingCash, e.l)
	if err != nil {
		return nil, errors.Wrap(err, "create broker")
	}

	return e, nil
}

// RunID returns the run identifier.
func (e *Engine) RunID() string {
	return e.runID
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() domain.Phase {
	return e.phase
}

// Broker exposes the run's broker for inspection.
func (e *Engine) Broker() *broker.Broker {
	return e.broker
}

func (e *Engine) expect(op string, phases ...domain.Phase) error {
	for _, p := range phases {
		if e.phase == p {
			return nil
		}
	}
	return errors.Wrapf(domain.ErrInvalidPhase, "%s in phase %s", op, e.phase)
}

// Startup hands the broker to the strategy so it can watch symbols.
func (e *Engine) Startup() error {
	if err := e.expect("startup", domain.PhaseUnstarted); err != nil {
		return err
	}

	if err := e.strategy.Startup(e.broker); err != nil {
		return &HookError{Hook: "startup", Err: err}
	}
	e.phase = domain.PhaseStarted

	e.l.Info("simulation started",
		zap.Strings("symbols", e.broker.Watched()),
		zap.String("cash", e.cfg.StartingCash.String()))

	return nil
}

// Train absorbs training frames into the broker and calls the strategy's Train hook.
func (e *Engine) Train(frames []domain.TimeFrame) error {
	if err := e.expect("train", domain.PhaseStarted); err != nil {
		return err
	}

	if err := e.checkFrames(frames); err != nil {
		return errors.Wrap(err, "train")
	}
	for _, frame := range frames {
		if err := e.advance(frame); err != nil {
			return errors.Wrap(err, "train")
		}
	}

	if err := e.strategy.Train(); err != nil {
		return &HookError{Hook: "train", Err: err}
	}
	e.phase = domain.PhaseTrained

	e.l.Info("training finished", zap.Int("frames", len(frames)))

	return nil
}

// RunOneTimeFrame applies frame, delivers the results of the previous frame's orders to the
// strategy and settles whatever it queues. A started frame always completes its settlement.
func (e *Engine) RunOneTimeFrame(frame domain.TimeFrame) error {
	if err := e.expect("run one time frame", domain.PhaseTrained, domain.PhaseRunning); err != nil {
		return err
	}
	if err := e.advance(frame); err != nil {
		return errors.Wrap(err, "run one time frame")
	}
	e.phase = domain.PhaseRunning

	deliver := e.undelivered
	e.undelivered = nil
	if e.cfg.Settlement == SettleAtNextOpen {
		deliver = e.settle(frame.Time)
	}

	e.broker.OpenTrading()
	hookErr := e.strategy.RunOneTimeFrame(frame.Time, deliver)
	e.broker.CloseTrading()

	if e.cfg.Settlement == SettleAtSubmission {
		e.undelivered = e.settle(frame.Time)
	}
	e.frames++
	e.record(frame.Time)

	if hookErr != nil {
		return &HookError{Hook: "run_one_time_frame", Err: hookErr}
	}

	return nil
}

// Cleanup settles outstanding orders, seals the broker and calls the strategy's Cleanup hook.
func (e *Engine) Cleanup() error {
	if err := e.expect("cleanup", domain.PhaseRunning); err != nil {
		return err
	}

	if e.broker.Pending() > 0 {
		e.undelivered = append(e.undelivered, e.settle(e.lastFrame)...)
	}
	e.broker.Seal()
	e.phase = domain.PhaseDone

	if err := e.strategy.Cleanup(); err != nil {
		return &HookError{Hook: "cleanup", Err: err}
	}

	e.l.Info("simulation finished",
		zap.Int("frames", e.frames),
		zap.Int("orders", len(e.processed)),
		zap.String("total_value", e.broker.TotalValue().String()))

	return nil
}

// Run executes the whole lifecycle against the provider's history.
// ctx is checked before every testing frame.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.provider == nil {
		return nil, errors.New("run needs a data provider")
	}

	if err := e.Startup(); err != nil {
		return nil, err
	}

	symbols := e.broker.Watched()
	if len(symbols) == 0 {
		return nil, errors.Wrap(domain.ErrUnknownSymbol, "strategy watched no symbols")
	}

	history, err := e.provider.Load(ctx, symbols)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	if err := history.Validate(symbols); err != nil {
		return nil, errors.Wrap(err, "validate history")
	}
	if err := columns.Attach(history, symbols, e.strategy.DerivedColumns(), e.l); err != nil {
		return nil, errors.Wrap(err, "derived columns")
	}

	training, testing, err := history.Split(e.cfg.TrainingFrames)
	if err != nil {
		return nil, errors.Wrap(err, "split history")
	}
	if len(testing) == 0 {
		return nil, errors.Wrapf(domain.ErrInvalidFrame, "no testing frames after %d training frames", len(training))
	}

	if err := e.Train(training); err != nil {
		return nil, err
	}

	for _, frame := range testing {
		if err := ctx.Err(); err != nil {
			e.l.Warn("simulation cancelled", zap.Int("frames", e.frames), zap.Error(err))
			return nil, errors.Wrapf(err, "cancelled after %d frames", e.frames)
		}
		if err := e.RunOneTimeFrame(frame); err != nil {
			return nil, err
		}
	}

	if err := e.Cleanup(); err != nil {
		return nil, err
	}

	return e.Result(), nil
}

// Result summarises the run so far.
func (e *Engine) Result() *Result {
	processed := make([]domain.ProcessedOrder, len(e.processed))
	copy(processed, e.processed)

	return &Result{
		RunID:       e.runID,
		Strategy:    e.strategy.Name(),
		Settlement:  e.cfg.Settlement,
		Frames:      e.frames,
		Processed:   processed,
		Final:       e.broker.Portfolio(),
		TotalValue:  e.broker.TotalValue(),
		Fingerprint: e.fingerprint.Sum(),
	}
}

// checkFrames rejects a batch of frames that advance would fail on part way through.
func (e *Engine) checkFrames(frames []domain.TimeFrame) error {
	last, has := e.lastFrame, e.hasFrame
	watched := e.broker.Watched()

	for i, frame := range frames {
		if has && !frame.Time.After(last) {
			return errors.Wrapf(domain.ErrInvalidFrame, "frame %d at %s is not after %s",
				i, frame.Time.Format(time.RFC3339), last.Format(time.RFC3339))
		}
		for _, symbol := range watched {
			if price, ok := frame.Price(symbol); ok && price.IsNegative() {
				return errors.Wrapf(domain.ErrInvalidPrice, "%s price %s in frame %d", symbol, price.String(), i)
			}
		}
		last, has = frame.Time, true
	}

	return nil
}

func (e *Engine) advance(frame domain.TimeFrame) error {
	if e.hasFrame && !frame.Time.After(e.lastFrame) {
		return errors.Wrapf(domain.ErrInvalidFrame, "frame at %s is not after %s",
			frame.Time.Format(time.RFC3339), e.lastFrame.Format(time.RFC3339))
	}
	if err := e.broker.ApplyFrame(frame); err != nil {
		return err
	}
	e.lastFrame = frame.Time
	e.hasFrame = true

	return nil
}

func (e *Engine) settle(at time.Time) []domain.ProcessedOrder {
	processed := e.broker.Settle(at)
	for _, p := range processed {
		e.processed = append(e.processed, p)
		e.fingerprint.Add(p)

		if e.ledger == nil {
			continue
		}
		if err := e.ledger.Append(domain.NewSettlementRecord(e.runID, p)); err != nil {
			e.l.Warn("failed to append settlement record", zap.Uint64("handle", uint64(p.Handle)), zap.Error(err))
		}
	}
	return processed
}

func (e *Engine) record(at time.Time) {
	snapshot := e.broker.Snapshot()

	e.l.Debug("frame complete",
		zap.Time("time", at),
		zap.String("cash", snapshot.Cash.String()),
		zap.String("total_value", snapshot.TotalValue.String()),
		zap.Int("pending", snapshot.Pending))

	if e.reporter != nil {
		e.reporter.Report(e.strategy.Name(), snapshot, at)
	}
	if e.equity != nil {
		if err := e.equity.Save(domain.NewBalanceSnapshot(e.runID, e.strategy.Name(), snapshot)); err != nil {
			e.l.Warn("failed to save equity snapshot", zap.Time("time", at), zap.Error(err))
		}
	}
}
