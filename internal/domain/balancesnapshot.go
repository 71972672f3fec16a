package domain

import "time"

// BalanceSnapshot portfolio state of a run at the end of a frame.
// String fields avoid precision issues when rendered in UI layers.
type BalanceSnapshot struct {
	Timestamp  time.Time        `json:"ts"`
	RunID      string           `json:"run_id"`
	Strategy   string           `json:"strategy"`
	Cash       string           `json:"cash"`
	Holdings   map[string]int64 `json:"holdings,omitempty"`
	TotalValue string           `json:"total_value"`
}

// NewBalanceSnapshot creates a new BalanceSnapshot from a broker snapshot.
func NewBalanceSnapshot(runID, strategy string, snapshot BrokerSnapshot) BalanceSnapshot {
	holdings := make(map[string]int64, len(snapshot.Holdings))
	for symbol, qty := range snapshot.Holdings {
		holdings[symbol] = qty
	}

	return BalanceSnapshot{
		Timestamp:  snapshot.Time,
		RunID:      runID,
		Strategy:   strategy,
		Cash:       snapshot.Cash.String(),
		Holdings:   holdings,
		TotalValue: snapshot.TotalValue.String(),
	}
}

// BalanceSnapshotRecord bundles a snapshot with the log index it originated from.
type BalanceSnapshotRecord struct {
	Index    uint64
	Snapshot BalanceSnapshot
}
