// Package indicators computes technical indicators (SMA, EMA, MACD, RSI, ATR) over decimal series.
// Results are shorter than the input by the indicator's warm-up period and aligned to its end.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MACD slow period of the default 12/26/9 configuration.
const macdSlowPeriod = 26

var (
	// ErrNotEnoughData is returned when the series is shorter than the indicator's warm-up.
	ErrNotEnoughData = errors.New("not enough data points")
	// ErrInvalidPeriod is returned for non-positive periods.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrNotFinite is returned when the computation produced NaN or Inf, e.g. RSI over a flat series.
	ErrNotFinite = errors.New("indicator value is not finite")
)

// PriceData represents OHLC (open, high, low, close) price data.
type PriceData struct {
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkLength(len(closes), period, period); err != nil {
		return nil, errors.Wrap(err, "sma")
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out)
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkLength(len(closes), period, period); err != nil {
		return nil, errors.Wrap(err, "ema")
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out)
}

// CalculateMACD calculates MACD line values.
func CalculateMACD(closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if err := checkLength(len(closes), macdSlowPeriod, macdSlowPeriod); err != nil {
		return nil, errors.Wrap(err, "macd")
	}

	macd := trend.NewMacd[float64]()
	macdChan, signalChan := macd.Compute(helper.SliceToChan(decimalsToFloat64(closes)))
	// drain signal channel to prevent blocking
	go func() {
		for range signalChan {
		}
	}()

	return float64ToDecimals(helper.ChanToSlice(macdChan))
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkLength(len(closes), period, period+1); err != nil {
		return nil, errors.Wrap(err, "rsi")
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes))))

	return float64ToDecimals(out)
}

// CalculateATR calculates the Average True Range for the given period.
func CalculateATR(priceData []PriceData, period int) ([]decimal.Decimal, error) {
	if err := checkLength(len(priceData), period, period+1); err != nil {
		return nil, errors.Wrap(err, "atr")
	}

	highs := make([]float64, len(priceData))
	lows := make([]float64, len(priceData))
	closes := make([]float64, len(priceData))

	for i, pd := range priceData {
		highs[i], _ = pd.High.Float64()
		lows[i], _ = pd.Low.Float64()
		closes[i], _ = pd.Close.Float64()
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	out := atr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))

	return float64ToDecimals(helper.ChanToSlice(out))
}

func checkLength(have, period, need int) error {
	if period < 1 {
		return errors.Wrapf(ErrInvalidPeriod, "period %d", period)
	}
	if have < need {
		return errors.Wrapf(ErrNotEnoughData, "need %d, got %d", need, have)
	}
	return nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) ([]decimal.Decimal, error) {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.Wrapf(ErrNotFinite, "value %d of %d", i, len(floats))
		}
		result[i] = decimal.NewFromFloat(f)
	}
	return result, nil
}
