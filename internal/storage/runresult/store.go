// Package runresult stores the final outcome of simulation runs as JSON documents.
package runresult

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
	"github.com/vadiminshakov/monte/internal/engine"
)

const defaultResultsDir = "./results"

// Document persisted run result.
type Document struct {
	Name         string                    `json:"name"`
	RunID        string                    `json:"run_id"`
	Strategy     string                    `json:"strategy"`
	Settlement   string                    `json:"settlement"`
	Frames       int                       `json:"frames"`
	StartingCash decimal.Decimal           `json:"starting_cash"`
	Cash         decimal.Decimal           `json:"cash"`
	Holdings     map[string]int64          `json:"holdings,omitempty"`
	TotalValue   decimal.Decimal           `json:"total_value"`
	Fingerprint  string                    `json:"fingerprint"`
	Orders       []domain.SettlementRecord `json:"orders"`
	FinishedAt   time.Time                 `json:"finished_at"`
}

// NewDocument converts an engine result into its stored form.
func NewDocument(name string, startingCash decimal.Decimal, res *engine.Result, finishedAt time.Time) Document {
	orders := make([]domain.SettlementRecord, 0, len(res.Processed))
	for _, p := range res.Processed {
		orders = append(orders, domain.NewSettlementRecord(res.RunID, p))
	}

	return Document{
		Name:         name,
		RunID:        res.RunID,
		Strategy:     res.Strategy,
		Settlement:   string(res.Settlement),
		Frames:       res.Frames,
		StartingCash: startingCash,
		Cash:         res.Final.Cash,
		Holdings:     res.Final.Holdings,
		TotalValue:   res.TotalValue,
		Fingerprint:  res.Fingerprint,
		Orders:       orders,
		FinishedAt:   finishedAt,
	}
}

// Return is total value relative to starting cash, in percent.
func (d Document) Return() decimal.Decimal {
	if d.StartingCash.IsZero() {
		return decimal.Zero
	}
	return d.TotalValue.Sub(d.StartingCash).Div(d.StartingCash).Mul(decimal.NewFromInt(100))
}

// Store keeps one document per run name in a directory.
type Store struct {
	dir string
}

// NewStore creates a store under dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = defaultResultsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create results dir")
	}

	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) (string, error) {
	file := sanitizeScope(name)
	if file == "" {
		return "", errors.Errorf("invalid run name %q", name)
	}
	return filepath.Join(s.dir, file+".json"), nil
}

// Save writes doc atomically via temp file, replacing the previous result of the same name.
func (s *Store) Save(doc Document) error {
	path, err := s.path(doc.Name)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode run result")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write run result temp file")
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "persist run result")
	}

	return nil
}

// Load reads the result stored under name. A missing result is (nil, nil).
func (s *Store) Load(name string) (*Document, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read run result")
	}

	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, errors.Wrap(err, "decode run result")
	}

	return &doc, nil
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
