// Package report renders simulation progress and results.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/engine"
)

// LogReporter logs the total value of a run after every frame.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(l *zap.Logger) *LogReporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogReporter{logger: l}
}

// Report implements engine.Reporter.
func (r *LogReporter) Report(name string, snapshot domain.BrokerSnapshot, at time.Time) {
	r.logger.Info("total value",
		zap.String("strategy", name),
		zap.String("total_value", snapshot.TotalValue.StringFixed(2)),
		zap.String("cash", snapshot.Cash.StringFixed(2)),
		zap.Int("pending", snapshot.Pending),
		zap.Time("time", at),
	)
}

// Row one line of the summary table.
type Row struct {
	Name         string
	Strategy     string
	Settlement   string
	Frames       int
	StartingCash decimal.Decimal
	TotalValue   decimal.Decimal
	Filled       int
	Rejected     int
	Fingerprint  string
	Err          error
}

// NewRow summarizes a finished run. A nil result yields a row carrying only err.
func NewRow(name string, startingCash decimal.Decimal, res *engine.Result, err error) Row {
	row := Row{Name: name, StartingCash: startingCash, Err: err}
	if res == nil {
		return row
	}

	row.Strategy = res.Strategy
	row.Settlement = string(res.Settlement)
	row.Frames = res.Frames
	row.TotalValue = res.TotalValue
	row.Fingerprint = res.Fingerprint
	for _, p := range res.Processed {
		if p.Filled() {
			row.Filled++
		} else {
			row.Rejected++
		}
	}

	return row
}

// Return is the change of value relative to starting cash, in percent.
func (r Row) Return() decimal.Decimal {
	if r.StartingCash.IsZero() {
		return decimal.Zero
	}
	return r.TotalValue.Sub(r.StartingCash).Div(r.StartingCash).Mul(decimal.NewFromInt(100))
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	gainStyle   = cellStyle.Foreground(lipgloss.Color("42"))
	lossStyle   = cellStyle.Foreground(lipgloss.Color("196"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const returnColumn = 5

// Summary renders rows as a table.
func Summary(rows []Row) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.Err != nil {
			data = append(data, []string{r.Name, r.Strategy, "-", "-", "-", "failed", "-", r.Err.Error()})
			continue
		}

		data = append(data, []string{
			r.Name,
			r.Strategy,
			r.Settlement,
			strconv.Itoa(r.Frames),
			r.TotalValue.StringFixed(2),
			r.Return().StringFixed(2) + "%",
			fmt.Sprintf("%d/%d", r.Filled, r.Rejected),
			shortFingerprint(r.Fingerprint),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("RUN", "STRATEGY", "SETTLEMENT", "FRAMES", "TOTAL VALUE", "RETURN", "FILLED/REJECTED", "FINGERPRINT").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != returnColumn || row < 0 || row >= len(rows) || rows[row].Err != nil {
				return cellStyle
			}
			if rows[row].TotalValue.LessThan(rows[row].StartingCash) {
				return lossStyle
			}
			return gainStyle
		})

	return t.Render()
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
