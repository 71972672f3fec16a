package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SettlementRecord persisted form of a processed order.
type SettlementRecord struct {
	RunID          string          `json:"run_id"`
	Handle         OrderHandle     `json:"handle"`
	Symbol         string          `json:"symbol"`
	Quantity       int64           `json:"quantity"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	SubmittedPrice decimal.Decimal `json:"submitted_price"`
	FillPrice      decimal.Decimal `json:"fill_price"`
	SettledAt      time.Time       `json:"settled_at"`
}

// NewSettlementRecord converts a processed order into its stored representation.
func NewSettlementRecord(runID string, p ProcessedOrder) SettlementRecord {
	rec := SettlementRecord{
		RunID:          runID,
		Handle:         p.Handle,
		Symbol:         p.Symbol,
		Quantity:       p.Quantity,
		Type:           p.Type.String(),
		Status:         p.Status.String(),
		SubmittedAt:    p.SubmittedAt,
		SubmittedPrice: p.SubmittedPrice,
		FillPrice:      p.FillPrice,
		SettledAt:      p.SettledAt,
	}
	if p.Reason != nil {
		rec.Reason = p.Reason.Error()
	}
	return rec
}

// ToProcessedOrder reconstructs the processed order from stored data.
func (r SettlementRecord) ToProcessedOrder() (ProcessedOrder, error) {
	orderType, err := ParseOrderType(r.Type)
	if err != nil {
		return ProcessedOrder{}, errors.Wrap(err, "decode order type")
	}

	var status OrderStatus
	switch r.Status {
	case OrderStatusFilled.String():
		status = OrderStatusFilled
	case OrderStatusRejected.String():
		status = OrderStatusRejected
	default:
		return ProcessedOrder{}, errors.Errorf("unknown order status %q", r.Status)
	}

	return ProcessedOrder{
		Order: Order{
			Handle:         r.Handle,
			Symbol:         r.Symbol,
			Quantity:       r.Quantity,
			Type:           orderType,
			SubmittedAt:    r.SubmittedAt,
			SubmittedPrice: r.SubmittedPrice,
		},
		Status:    status,
		Reason:    ParseRejectionReason(r.Reason),
		FillPrice: r.FillPrice,
		SettledAt: r.SettledAt,
	}, nil
}

// SettlementRecordEntry bundles a record with the log index it originated from.
type SettlementRecordEntry struct {
	Index  uint64
	Record SettlementRecord
}
