package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Options command line switches that are not part of a run.
type Options struct {
	ConfigPath string
	Setup      bool
	Debug      bool
}

// Get parses os.Args. With --setup the returned Config is nil and the caller runs the wizard.
func Get() (*Config, Options, error) {
	return Parse(os.Args[1:])
}

// Parse builds the configuration from args: a YAML file when --config is set, otherwise a
// single run described by flags.
func Parse(args []string) (*Config, Options, error) {
	fs := flag.NewFlagSet("monte", flag.ContinueOnError)

	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "path to yaml runs file")
	fs.BoolVar(&opts.Setup, "setup", false, "run the interactive configuration wizard")
	fs.BoolVar(&opts.Debug, "debug", false, "development logging")

	name := fs.String("name", "", "run name")
	strategy := fs.String("strategy", "buy_and_hold", "strategy: buy_and_hold, dca, ema_cross")
	symbols := fs.String("symbols", "", "comma separated symbols, example: BTC_USDT,ETH_USDT")
	cash := fs.String("cash", "10000", "starting cash")
	training := fs.Int("training", 0, "number of leading frames used for training")
	settlement := fs.String("settlement", "submission", "settlement rule: submission, next_open")
	source := fs.String("source", SourceCSV, "history source: csv, binance, bybit, hyperliquid")
	csvPath := fs.String("csv", "", "path to candles csv")
	interval := fs.String("interval", defaultInterval, "kline interval for exchange sources")
	limit := fs.Int("limit", defaultLimit, "number of klines to fetch")
	price := fs.String("price", "close", "candle field used as frame price: close, open")
	quantity := fs.Int64("quantity", 1, "shares per order")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}

	if opts.Setup {
		return nil, opts, nil
	}

	if opts.ConfigPath != "" {
		cfg, err := Load(opts.ConfigPath)
		return cfg, opts, err
	}

	if *symbols == "" {
		return nil, opts, errors.New("either --config, --setup or --symbols must be provided")
	}

	tmp := ConfigTmp{
		Parallelism: 1,
		Runs: []RunTmp{{
			Name:           *name,
			Strategy:       *strategy,
			StartingCash:   *cash,
			Symbols:        strings.Split(*symbols, ","),
			TrainingFrames: *training,
			Settlement:     *settlement,
			Params:         ParamsTmp{Quantity: strconv.FormatInt(*quantity, 10)},
			Source: SourceTmp{
				Type:     *source,
				Interval: *interval,
				Limit:    *limit,
				Price:    *price,
				Path:     *csvPath,
			},
		}},
	}

	cfg, err := tmp.toConfig()
	return cfg, opts, err
}
