package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset snapshot of a watched symbol at the current frame.
type Asset struct {
	Symbol  string
	Price   decimal.Decimal
	Watched bool
	// Priced is false until a frame carrying the symbol has been applied.
	Priced bool
}

// PortfolioSnapshot read-only copy of cash and holdings.
type PortfolioSnapshot struct {
	Cash     decimal.Decimal
	Holdings map[string]int64
}

// Holding returns the share count for a symbol.
func (p PortfolioSnapshot) Holding(symbol string) int64 {
	return p.Holdings[symbol]
}

// BrokerSnapshot view handed to reporters after each frame.
type BrokerSnapshot struct {
	Time       time.Time
	Cash       decimal.Decimal
	Holdings   map[string]int64
	Prices     map[string]decimal.Decimal
	TotalValue decimal.Decimal
	Pending    int
}
