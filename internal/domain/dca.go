package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	percentageMultiplier   = 100
	doubleProfitMultiplier = 2
)

// DCAPurchase represents a single filled DCA lot.
type DCAPurchase struct {
	Handle   OrderHandle     `json:"handle"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Time     time.Time       `json:"time"`
}

// newDCAPurchase creates a validated DCAPurchase.
func newDCAPurchase(handle OrderHandle, price decimal.Decimal, quantity int64, at time.Time) (DCAPurchase, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return DCAPurchase{}, fmt.Errorf("price must be positive, got %s", price.String())
	}
	if quantity <= 0 {
		return DCAPurchase{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	return DCAPurchase{
		Handle:   handle,
		Price:    price,
		Quantity: quantity,
		Time:     at,
	}, nil
}

// DCASeries is the current DCA series state of one symbol.
type DCASeries struct {
	Purchases     []DCAPurchase   `json:"purchases"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	FirstBuyTime  time.Time       `json:"first_buy_time"`
	TotalShares   int64           `json:"total_shares"`
	LastSellPrice decimal.Decimal `json:"last_sell_price"`
}

// NewDCASeries creates a new empty DCASeries with initialized collections.
func NewDCASeries() *DCASeries {
	return &DCASeries{
		Purchases:     make([]DCAPurchase, 0),
		AvgEntryPrice: decimal.Zero,
		LastSellPrice: decimal.Zero,
	}
}

// IsEmpty checks if series has no purchases.
func (s *DCASeries) IsEmpty() bool {
	return len(s.Purchases) == 0
}

// AddPurchase adds a validated purchase to the series and recalculates stats.
func (s *DCASeries) AddPurchase(handle OrderHandle, price decimal.Decimal, quantity int64, at time.Time) error {
	purchase, err := newDCAPurchase(handle, price, quantity, at)
	if err != nil {
		return fmt.Errorf("invalid purchase: %w", err)
	}

	s.Purchases = append(s.Purchases, purchase)
	s.recalculateStats()

	return nil
}

// RemoveShares removes sold shares from the most recent lots first.
func (s *DCASeries) RemoveShares(quantity int64, price decimal.Decimal) {
	if quantity <= 0 || len(s.Purchases) == 0 {
		return
	}

	remaining := quantity
	for i := len(s.Purchases) - 1; i >= 0 && remaining > 0; i-- {
		purchase := s.Purchases[i]
		if purchase.Quantity <= remaining {
			remaining -= purchase.Quantity
			s.Purchases = s.Purchases[:i]
			continue
		}

		purchase.Quantity -= remaining
		s.Purchases[i] = purchase
		remaining = 0
	}

	s.LastSellPrice = price
	s.recalculateStats()
}

// recalculateStats recalculates series statistics.
func (s *DCASeries) recalculateStats() {
	if len(s.Purchases) == 0 {
		s.TotalShares = 0
		s.AvgEntryPrice = decimal.Zero
		s.FirstBuyTime = time.Time{}
		return
	}

	var total int64
	weightedPriceSum := decimal.Zero

	for _, purchase := range s.Purchases {
		total += purchase.Quantity
		weightedPriceSum = weightedPriceSum.Add(purchase.Price.Mul(decimal.NewFromInt(purchase.Quantity)))
	}

	s.TotalShares = total
	s.AvgEntryPrice = weightedPriceSum.Div(decimal.NewFromInt(total))
	s.FirstBuyTime = s.Purchases[0].Time
}

// ShouldBuyAtPrice evaluates buy conditions at given price.
func (s *DCASeries) ShouldBuyAtPrice(price decimal.Decimal, thresholds DCAThresholds) BuyDecision {
	if s.IsEmpty() {
		return BuyDecision{ShouldBuy: false, Reason: "empty_series"}
	}

	// guard: no average price
	if s.AvgEntryPrice.IsZero() {
		return BuyDecision{ShouldBuy: false, Reason: "no_avg_price"}
	}

	if !price.LessThan(s.AvgEntryPrice) {
		return BuyDecision{ShouldBuy: false, Reason: "price_not_below_avg"}
	}

	if !IsPercentDifferenceSignificant(price, s.AvgEntryPrice, thresholds.BuyThresholdPercent) {
		return BuyDecision{ShouldBuy: false, Reason: "dip_not_significant"}
	}

	if len(s.Purchases) >= thresholds.MaxTrades {
		return BuyDecision{ShouldBuy: false, Reason: "max_trades_reached"}
	}

	return BuyDecision{ShouldBuy: true, Reason: "price_dipped_below_avg"}
}

// ShouldTakeProfitAtPrice evaluates sell conditions at given price.
func (s *DCASeries) ShouldTakeProfitAtPrice(price decimal.Decimal, thresholds DCAThresholds) SellDecision {
	if s.AvgEntryPrice.IsZero() || s.TotalShares == 0 {
		return SellDecision{ShouldSell: false, Reason: "no_avg_price"}
	}

	if !price.GreaterThan(s.AvgEntryPrice) {
		return SellDecision{ShouldSell: false, Reason: "price_not_above_avg"}
	}

	if !IsPercentDifferenceSignificant(price, s.AvgEntryPrice, thresholds.SellThresholdPercent) {
		return SellDecision{ShouldSell: false, Reason: "gain_not_significant"}
	}

	profit := PercentageDiff(price, s.AvgEntryPrice)
	quantity := s.sellQuantity(profit, thresholds)
	if quantity <= 0 {
		return SellDecision{ShouldSell: false, Reason: "no_amount_to_sell"}
	}

	isFullSell := quantity == s.TotalShares

	reason := "partial_sell"
	if isFullSell {
		reason = "full_sell_double_threshold"
	}

	return SellDecision{
		ShouldSell: true,
		Quantity:   quantity,
		IsFullSell: isFullSell,
		Reason:     reason,
	}
}

// sellQuantity sells everything above twice the threshold, otherwise the most recent lot.
func (s *DCASeries) sellQuantity(profit decimal.Decimal, thresholds DCAThresholds) int64 {
	doubleThreshold := thresholds.SellThresholdPercent.Mul(decimal.NewFromInt(doubleProfitMultiplier))
	if profit.GreaterThan(doubleThreshold) {
		return s.TotalShares
	}

	if len(s.Purchases) == 0 {
		return 0
	}

	lot := s.Purchases[len(s.Purchases)-1].Quantity
	if lot > s.TotalShares {
		return s.TotalShares
	}

	return lot
}

// DCAThresholds encapsulates DCA decision thresholds.
type DCAThresholds struct {
	BuyThresholdPercent  decimal.Decimal
	SellThresholdPercent decimal.Decimal
	MaxTrades            int
}

// NewDCAThresholds creates validated DCA thresholds.
func NewDCAThresholds(buyThresholdPercent, sellThresholdPercent decimal.Decimal, maxTrades int) (DCAThresholds, error) {
	if buyThresholdPercent.LessThanOrEqual(decimal.Zero) {
		return DCAThresholds{}, fmt.Errorf("buyThresholdPercent must be positive, got %s", buyThresholdPercent.String())
	}
	if sellThresholdPercent.LessThanOrEqual(decimal.Zero) {
		return DCAThresholds{}, fmt.Errorf("sellThresholdPercent must be positive, got %s", sellThresholdPercent.String())
	}
	if maxTrades < 1 {
		return DCAThresholds{}, fmt.Errorf("maxTrades must be >= 1, got %d", maxTrades)
	}

	return DCAThresholds{
		BuyThresholdPercent:  buyThresholdPercent,
		SellThresholdPercent: sellThresholdPercent,
		MaxTrades:            maxTrades,
	}, nil
}

// BuyDecision represents a buy decision result.
type BuyDecision struct {
	ShouldBuy bool
	Reason    string
}

// SellDecision represents a sell decision result.
type SellDecision struct {
	ShouldSell bool
	Quantity   int64
	IsFullSell bool
	Reason     string
}

// IsPercentDifferenceSignificant checks if percentage difference exceeds threshold.
func IsPercentDifferenceSignificant(currentPrice, referencePrice, thresholdPercent decimal.Decimal) bool {
	if referencePrice.IsZero() {
		return false
	}

	diff := currentPrice.Sub(referencePrice)
	percentageDiff := diff.Div(referencePrice)
	absPercentageDiffHundred := percentageDiff.Abs().Mul(decimal.NewFromInt(percentageMultiplier))

	return absPercentageDiffHundred.GreaterThanOrEqual(thresholdPercent)
}

// PercentageDiff returns percentage difference between current and reference values.
func PercentageDiff(current, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return current.Sub(reference).Div(reference).Mul(decimal.NewFromInt(percentageMultiplier))
}
