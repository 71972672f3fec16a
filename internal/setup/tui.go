// Package setup is an interactive wizard producing a runs file.
package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/monte/config"
	"github.com/vadiminshakov/monte/internal/marketdata"
)

// GeneratedConfigFile is where the wizard writes its result.
const GeneratedConfigFile = "runs.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collected by the wizard.
type answers struct {
	name             string
	strategy         string
	source           string
	symbols          string
	csvPath          string
	interval         string
	limit            string
	cash             string
	training         string
	settlement       string
	quantity         string
	maxDcaTrades     string
	buyThreshold     string
	sellThreshold    string
	fastPeriod       string
	slowPeriod       string
}

func defaultAnswers() answers {
	return answers{
		name:          "run",
		cash:          "10000",
		training:      "0",
		settlement:    "submission",
		interval:      "1h",
		limit:         "500",
		quantity:      "1",
		maxDcaTrades:  "15",
		buyThreshold:  "3.5",
		sellThreshold: "0.75",
		fastPeriod:    "12",
		slowPeriod:    "26",
	}
}

// RunTUI launches the wizard and returns the path of the written runs file.
func RunTUI() (string, error) {
	a := defaultAnswers()

	step := func(title string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("MONTE RUN WIZARD"))
		fmt.Println(stepStyle.Render(title))
	}

	step("STEP 1: STRATEGY")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Describe one simulation run.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Run name").
				Value(&a.name).
				Validate(notEmpty("name")),
			huh.NewSelect[string]().
				Title("Choose a strategy").
				Options(
					huh.NewOption("Buy and hold", "buy_and_hold"),
					huh.NewOption("DCA (Dollar Cost Averaging)", "dca"),
					huh.NewOption("EMA cross", "ema_cross"),
				).
				Value(&a.strategy),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 2: HISTORY SOURCE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do candles come from?").
				Options(
					huh.NewOption("CSV file", config.SourceCSV),
					huh.NewOption("Binance", config.SourceBinance),
					huh.NewOption("Bybit", config.SourceBybit),
					huh.NewOption("Hyperliquid", config.SourceHyperliquid),
				).
				Value(&a.source),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 3: SYMBOLS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Symbols").
				Description("Comma separated, exchanges expect BASE_QUOTE (e.g. BTC_USDT,ETH_USDT)").
				Value(&a.symbols).
				Validate(func(s string) error { return validateSymbols(s, a.source) }),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 4: HISTORY")
	if a.source == config.SourceCSV {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Candles CSV path").
					Description("Header: time,symbol,open,high,low,close,volume").
					Value(&a.csvPath).
					Validate(notEmpty("path")),
			),
		).Run()
	} else {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Kline interval").
					Description("e.g. 15m, 1h, 1d").
					Value(&a.interval).
					Validate(func(s string) error {
						_, err := marketdata.ParseInterval(s)
						return err
					}),
				huh.NewInput().
					Title("Number of klines").
					Value(&a.limit).
					Validate(validatePositiveInt),
			),
		).Run()
	}
	if err != nil {
		return "", err
	}

	step("STEP 5: ACCOUNT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting cash").
				Value(&a.cash).
				Validate(validateCash),
			huh.NewInput().
				Title("Training frames").
				Description("Leading frames handed to the strategy before trading").
				Value(&a.training).
				Validate(validateNonNegativeInt),
			huh.NewSelect[string]().
				Title("Settlement").
				Options(
					huh.NewOption("At submission price", "submission"),
					huh.NewOption("At next frame open", "next_open"),
				).
				Value(&a.settlement),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 6: STRATEGY SETTINGS")
	fields := []huh.Field{
		huh.NewInput().
			Title("Shares per order").
			Value(&a.quantity).
			Validate(validatePositiveInt),
	}
	switch a.strategy {
	case "dca":
		fields = append(fields,
			huh.NewInput().
				Title("Max DCA Trades").
				Value(&a.maxDcaTrades).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Buy Price Drop %").
				Description("Price drop to trigger an averaging buy (e.g. 3.5)").
				Value(&a.buyThreshold).
				Validate(validatePercent),
			huh.NewInput().
				Title("Sell Take Profit %").
				Description("Price rise to take profit (e.g. 0.75)").
				Value(&a.sellThreshold).
				Validate(validatePercent),
		)
	case "ema_cross":
		fields = append(fields,
			huh.NewInput().
				Title("Fast EMA period").
				Value(&a.fastPeriod).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Slow EMA period").
				Value(&a.slowPeriod).
				Validate(validatePositiveInt),
		)
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Run: %s\nStrategy: %s\nSource: %s\nSymbols: %s\nCash: %s\nSettlement: %s\n",
		a.name, a.strategy, a.source, a.symbols, a.cash, a.settlement,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Yes, save and run").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", errors.New("setup cancelled by user")
	}

	tmp, err := a.configTmp()
	if err != nil {
		return "", err
	}
	if err := config.Save(GeneratedConfigFile, tmp); err != nil {
		return "", errors.Wrap(err, "failed to save config file")
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting simulation...", GeneratedConfigFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message

	return GeneratedConfigFile, nil
}

// configTmp converts the answers into a single-run config file.
func (a answers) configTmp() (config.ConfigTmp, error) {
	training, err := strconv.Atoi(a.training)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "training frames")
	}

	run := config.RunTmp{
		Name:           a.name,
		Strategy:       a.strategy,
		StartingCash:   a.cash,
		Symbols:        splitSymbols(a.symbols),
		TrainingFrames: training,
		Settlement:     a.settlement,
		Params:         config.ParamsTmp{Quantity: a.quantity},
		Source:         config.SourceTmp{Type: a.source},
	}

	if a.source == config.SourceCSV {
		run.Source.Path = a.csvPath
	} else {
		limit, err := strconv.Atoi(a.limit)
		if err != nil {
			return config.ConfigTmp{}, errors.Wrap(err, "kline limit")
		}
		run.Source.Interval = a.interval
		run.Source.Limit = limit
	}

	switch a.strategy {
	case "dca":
		run.Params.MaxDcaTradesStr = a.maxDcaTrades
		run.Params.DcaPercentThresholdBuyStr = a.buyThreshold
		run.Params.DcaPercentThresholdSellStr = a.sellThreshold
	case "ema_cross":
		fast, err := strconv.Atoi(a.fastPeriod)
		if err != nil {
			return config.ConfigTmp{}, errors.Wrap(err, "fast period")
		}
		slow, err := strconv.Atoi(a.slowPeriod)
		if err != nil {
			return config.ConfigTmp{}, errors.Wrap(err, "slow period")
		}
		run.Params.FastPeriod = fast
		run.Params.SlowPeriod = slow
	}

	return config.ConfigTmp{Parallelism: 1, Runs: []config.RunTmp{run}}, nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, symbol := range strings.Split(s, ",") {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			out = append(out, symbol)
		}
	}
	return out
}

func validateSymbols(s, source string) error {
	symbols := splitSymbols(s)
	if len(symbols) == 0 {
		return errors.New("at least one symbol is required")
	}
	if source == config.SourceCSV {
		return nil
	}
	for _, symbol := range symbols {
		if !strings.Contains(symbol, "_") {
			return errors.Errorf("invalid format %q: must be BASE_QUOTE (e.g. BTC_USDT)", symbol)
		}
	}
	return nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func validateCash(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func validatePercent(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("must be between 0 and 100")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errors.New("must be a positive integer")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return errors.New("must be a non-negative integer")
	}
	return nil
}
