package marketdata

import (
	"context"
	"encoding/csv"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

var csvHeader = []string{"time", "symbol", "open", "high", "low", "close", "volume"}

// CSVProvider reads candles from a file with the header
// time,symbol,open,high,low,close,volume. time is RFC3339 or unix milliseconds.
type CSVProvider struct {
	path  string
	field PriceField
}

// NewCSVProvider creates a provider over the file at path.
func NewCSVProvider(path string, field PriceField) *CSVProvider {
	return &CSVProvider{path: path, field: field}
}

// Load reads the file and assembles frames for symbols.
func (p *CSVProvider) Load(ctx context.Context, symbols []string) (*domain.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p.path)
	}
	defer f.Close()

	series, err := ReadCandlesCSV(f, symbols)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", p.path)
	}

	return Assemble(series, p.field)
}

// ReadCandlesCSV parses candles of symbols from r. Rows of other symbols are skipped.
func ReadCandlesCSV(r io.Reader, symbols []string) (map[string][]domain.MarketCandle, error) {
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	for i, name := range csvHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != name {
			return nil, errors.Errorf("unexpected column %d %q, want %q", i, header[i], name)
		}
	}

	series := make(map[string][]domain.MarketCandle, len(symbols))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		symbol := strings.TrimSpace(record[1])
		if !wanted[symbol] {
			continue
		}

		candle, err := parseCSVCandle(record)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		series[symbol] = append(series[symbol], candle)
	}

	for _, s := range symbols {
		if len(series[s]) == 0 {
			return nil, errors.Wrapf(domain.ErrUnknownSymbol, "no rows for %s", s)
		}
	}

	return series, nil
}

func parseCSVCandle(record []string) (domain.MarketCandle, error) {
	at, err := parseCSVTime(record[0])
	if err != nil {
		return domain.MarketCandle{}, err
	}

	values := make([]decimal.Decimal, 5)
	for i := range values {
		raw := strings.TrimSpace(record[i+2])
		if raw == "" && i == 4 {
			values[i] = decimal.Zero
			continue
		}
		values[i], err = decimal.NewFromString(raw)
		if err != nil {
			return domain.MarketCandle{}, errors.Wrapf(err, "parse %s", csvHeader[i+2])
		}
	}

	return domain.MarketCandle{
		OpenTime:  at,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: at,
	}, nil
}

func parseCSVTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", raw)
	}
	return at.UTC(), nil
}

// WriteCandlesCSV writes series in the format ReadCandlesCSV reads, symbols in sorted order.
func WriteCandlesCSV(w io.Writer, series map[string][]domain.MarketCandle) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, symbol := range slices.Sorted(maps.Keys(series)) {
		for _, c := range series[symbol] {
			row := []string{
				c.OpenTime.UTC().Format(time.RFC3339Nano),
				symbol,
				c.Open.String(),
				c.High.String(),
				c.Low.String(),
				c.Close.String(),
				c.Volume.String(),
			}
			if err := writer.Write(row); err != nil {
				return errors.Wrapf(err, "write %s", symbol)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
