// Package ledger keeps an append-only write-ahead log of settled orders.
package ledger

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/monte/internal/domain"
)

const (
	DefaultDir   = "./wal/ledger"
	segmentLimit = 1000
	maxSegments  = 100

	settlementKeyPrefix = "settlement_"
)

// WALStore persists settlement records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed ledger under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create wal dir")
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes a settlement record.
func (s *WALStore) Append(record domain.SettlementRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger is not initialized")
	}
	if record.RunID == "" {
		return errors.New("settlement record run id is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal settlement record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, settlementKeyPrefix+record.RunID, payload)
}

// RecordsAfter returns all records written after the provided WAL index.
func (s *WALStore) RecordsAfter(index uint64) ([]domain.SettlementRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("ledger is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]domain.SettlementRecordEntry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, settlementKeyPrefix) {
			continue
		}
		var record domain.SettlementRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrapf(err, "decode settlement record %d", idx)
		}
		entries = append(entries, domain.SettlementRecordEntry{Index: idx, Record: record})
	}

	return entries, nil
}

// Run returns the processed orders of one run in settlement order.
func (s *WALStore) Run(runID string) ([]domain.ProcessedOrder, error) {
	entries, err := s.RecordsAfter(0)
	if err != nil {
		return nil, err
	}

	var out []domain.ProcessedOrder
	for _, entry := range entries {
		if entry.Record.RunID != runID {
			continue
		}
		order, err := entry.Record.ToProcessedOrder()
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", entry.Index)
		}
		out = append(out, order)
	}

	return out, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
