package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/monte/internal/engine"
	"github.com/vadiminshakov/monte/internal/marketdata"
)

const (
	SourceCSV         = "csv"
	SourceBinance     = "binance"
	SourceBybit       = "bybit"
	SourceHyperliquid = "hyperliquid"

	defaultParallelism  = 1
	defaultInterval     = "1h"
	defaultLimit        = 500
	defaultLedgerDir    = "./wal/ledger"
	defaultEquityDir    = "./wal/equity"
	defaultResultsDir   = "./results"
	defaultMaxDcaTrades = 15
	defaultFastPeriod   = 12
	defaultSlowPeriod   = 26
)

// Config is a batch of simulation runs.
type Config struct {
	Parallelism int
	Runs        []Run
}

// Run configures a single simulation.
type Run struct {
	Name           string
	Strategy       string
	StartingCash   decimal.Decimal
	Symbols        []string
	TrainingFrames int
	Settlement     engine.SettlementRule
	Params         Params
	Source         Source
	Storage        Storage
}

// Params strategy parameters. Each strategy reads the fields it needs.
type Params struct {
	Quantity                int64
	MaxDcaTrades            int
	DcaPercentThresholdBuy  decimal.Decimal
	DcaPercentThresholdSell decimal.Decimal
	FastPeriod              int
	SlowPeriod              int
}

// Source describes where history comes from.
type Source struct {
	Type     string
	Interval string
	Limit    int
	Price    marketdata.PriceField
	Path     string
	URL      string
	End      time.Time
}

// Storage directories for run artifacts. Empty disables the store.
type Storage struct {
	LedgerDir  string
	EquityDir  string
	ResultsDir string
}

// ConfigTmp is the YAML shape of Config.
type ConfigTmp struct {
	Parallelism int      `yaml:"parallelism,omitempty"`
	Runs        []RunTmp `yaml:"runs"`
}

type RunTmp struct {
	Name           string     `yaml:"name"`
	Strategy       string     `yaml:"strategy"`
	StartingCash   string     `yaml:"starting_cash"`
	Symbols        []string   `yaml:"symbols"`
	TrainingFrames int        `yaml:"training_frames,omitempty"`
	Settlement     string     `yaml:"settlement,omitempty"`
	Params         ParamsTmp  `yaml:"params,omitempty"`
	Source         SourceTmp  `yaml:"source"`
	Storage        StorageTmp `yaml:"storage,omitempty"`
}

type ParamsTmp struct {
	Quantity                   string `yaml:"quantity,omitempty"`
	MaxDcaTradesStr            string `yaml:"max_dca_trades,omitempty"`
	DcaPercentThresholdBuyStr  string `yaml:"dca_percent_threshold_buy,omitempty"`
	DcaPercentThresholdSellStr string `yaml:"dca_percent_threshold_sell,omitempty"`
	FastPeriod                 int    `yaml:"fast_period,omitempty"`
	SlowPeriod                 int    `yaml:"slow_period,omitempty"`
}

type SourceTmp struct {
	Type     string `yaml:"type"`
	Interval string `yaml:"interval,omitempty"`
	Limit    int    `yaml:"limit,omitempty"`
	Price    string `yaml:"price,omitempty"`
	Path     string `yaml:"path,omitempty"`
	URL      string `yaml:"url,omitempty"`
	End      string `yaml:"end,omitempty"`
}

type StorageTmp struct {
	LedgerDir  string `yaml:"ledger_dir,omitempty"`
	EquityDir  string `yaml:"equity_dir,omitempty"`
	ResultsDir string `yaml:"results_dir,omitempty"`
}

// Load reads a YAML runs file.
func Load(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, errors.Wrap(err, "decode yaml config")
	}

	return tmp.toConfig()
}

// Save writes the YAML form of tmp to path.
func Save(path string, tmp ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "encode yaml config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}

func (c ConfigTmp) toConfig() (*Config, error) {
	if len(c.Runs) == 0 {
		return nil, errors.New("config has no runs")
	}

	cfg := &Config{Parallelism: c.Parallelism}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}

	seen := make(map[string]struct{}, len(c.Runs))
	for i, r := range c.Runs {
		run, err := r.toRun(i)
		if err != nil {
			return nil, errors.Wrapf(err, "run #%d", i+1)
		}
		if _, dup := seen[run.Name]; dup {
			return nil, errors.Errorf("duplicate run name %q", run.Name)
		}
		seen[run.Name] = struct{}{}

		cfg.Runs = append(cfg.Runs, run)
	}

	return cfg, nil
}

func (r RunTmp) toRun(i int) (Run, error) {
	strategy := strings.TrimSpace(r.Strategy)
	if strategy == "" {
		return Run{}, errors.New("'strategy' is required")
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = fmt.Sprintf("%s-%d", strategy, i+1)
	}

	if r.StartingCash == "" {
		return Run{}, errors.New("'starting_cash' is required")
	}
	cash, err := decimal.NewFromString(r.StartingCash)
	if err != nil {
		return Run{}, errors.Wrapf(err, "incorrect 'starting_cash' param in yaml config: %s", r.StartingCash)
	}
	if cash.IsNegative() {
		return Run{}, errors.Errorf("'starting_cash' must not be negative, got %s", cash.String())
	}

	symbols := make([]string, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return Run{}, errors.New("'symbols' must not be empty")
	}

	if r.TrainingFrames < 0 {
		return Run{}, errors.Errorf("'training_frames' must not be negative, got %d", r.TrainingFrames)
	}

	settlement, err := engine.ParseSettlementRule(r.Settlement)
	if err != nil {
		return Run{}, err
	}

	params, err := r.Params.toParams()
	if err != nil {
		return Run{}, err
	}

	source, err := r.Source.toSource()
	if err != nil {
		return Run{}, err
	}

	return Run{
		Name:           name,
		Strategy:       strategy,
		StartingCash:   cash,
		Symbols:        symbols,
		TrainingFrames: r.TrainingFrames,
		Settlement:     settlement,
		Params:         params,
		Source:         source,
		Storage:        r.Storage.toStorage(),
	}, nil
}

func (p ParamsTmp) toParams() (Params, error) {
	params := Params{
		Quantity:                1,
		MaxDcaTrades:            defaultMaxDcaTrades,
		DcaPercentThresholdBuy:  decimal.NewFromInt(1),
		DcaPercentThresholdSell: decimal.NewFromInt(7),
		FastPeriod:              defaultFastPeriod,
		SlowPeriod:              defaultSlowPeriod,
	}

	if p.Quantity != "" {
		qty, err := strconv.ParseInt(p.Quantity, 10, 64)
		if err != nil || qty <= 0 {
			return Params{}, errors.Errorf("incorrect 'quantity' param in yaml config (must be a positive integer): %s", p.Quantity)
		}
		params.Quantity = qty
	}

	if p.MaxDcaTradesStr != "" {
		maxDcaTrades, err := strconv.Atoi(p.MaxDcaTradesStr)
		if err != nil {
			return Params{}, errors.Wrap(err, "incorrect 'max_dca_trades' param in yaml config (must be an integer)")
		}
		params.MaxDcaTrades = maxDcaTrades
	}

	if p.DcaPercentThresholdBuyStr != "" {
		buy, err := decimal.NewFromString(p.DcaPercentThresholdBuyStr)
		if err != nil {
			return Params{}, errors.Wrap(err, "incorrect 'dca_percent_threshold_buy' param in yaml config (must be a decimal)")
		}
		params.DcaPercentThresholdBuy = buy
	}

	if p.DcaPercentThresholdSellStr != "" {
		sell, err := decimal.NewFromString(p.DcaPercentThresholdSellStr)
		if err != nil {
			return Params{}, errors.Wrap(err, "incorrect 'dca_percent_threshold_sell' param in yaml config (must be a decimal)")
		}
		params.DcaPercentThresholdSell = sell
	}

	if p.FastPeriod != 0 {
		params.FastPeriod = p.FastPeriod
	}
	if p.SlowPeriod != 0 {
		params.SlowPeriod = p.SlowPeriod
	}

	return params, nil
}

func (s SourceTmp) toSource() (Source, error) {
	src := Source{
		Type:     strings.ToLower(strings.TrimSpace(s.Type)),
		Interval: s.Interval,
		Limit:    s.Limit,
		Path:     s.Path,
		URL:      s.URL,
	}

	price, err := marketdata.ParsePriceField(s.Price)
	if err != nil {
		return Source{}, err
	}
	src.Price = price

	if s.End != "" {
		end, err := time.Parse(time.RFC3339, s.End)
		if err != nil {
			return Source{}, errors.Wrapf(err, "incorrect 'end' param in yaml config (RFC3339 expected): %s", s.End)
		}
		src.End = end.UTC()
	}

	switch src.Type {
	case SourceCSV:
		if src.Path == "" {
			return Source{}, errors.New("csv source needs 'path'")
		}
	case SourceBinance, SourceBybit, SourceHyperliquid:
		if src.Interval == "" {
			src.Interval = defaultInterval
		}
		if _, err := marketdata.ParseInterval(src.Interval); err != nil {
			return Source{}, err
		}
		if src.Limit == 0 {
			src.Limit = defaultLimit
		}
		if src.Limit < 0 {
			return Source{}, errors.Errorf("'limit' must be positive, got %d", src.Limit)
		}
	case "":
		return Source{}, errors.New("'source.type' is required")
	default:
		return Source{}, errors.Errorf("unsupported source type %q", src.Type)
	}

	return src, nil
}

func (s StorageTmp) toStorage() Storage {
	st := Storage{LedgerDir: s.LedgerDir, EquityDir: s.EquityDir, ResultsDir: s.ResultsDir}
	if st.LedgerDir == "" {
		st.LedgerDir = defaultLedgerDir
	}
	if st.EquityDir == "" {
		st.EquityDir = defaultEquityDir
	}
	if st.ResultsDir == "" {
		st.ResultsDir = defaultResultsDir
	}
	return st
}
