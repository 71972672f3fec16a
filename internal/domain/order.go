package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderType side of an order.
type OrderType int

const (
	OrderTypeBuy OrderType = iota
	OrderTypeSell
)

// order type string constants to avoid magic strings
const (
	orderTypeStringBuy  = "buy"
	orderTypeStringSell = "sell"
)

// String returns the string representation of the order type.
func (t OrderType) String() string {
	switch t {
	case OrderTypeBuy:
		return orderTypeStringBuy
	case OrderTypeSell:
		return orderTypeStringSell
	default:
		return "unknown"
	}
}

// IsValid checks if the OrderType value is valid.
func (t OrderType) IsValid() bool {
	return t == OrderTypeBuy || t == OrderTypeSell
}

// ParseOrderType converts "buy"/"sell" into an OrderType.
func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case orderTypeStringBuy:
		return OrderTypeBuy, nil
	case orderTypeStringSell:
		return OrderTypeSell, nil
	}
	return 0, errors.Errorf("unknown order type %q", s)
}

// OrderStatus settlement outcome.
type OrderStatus int

const (
	OrderStatusFilled OrderStatus = iota + 1
	OrderStatusRejected
)

// String returns the string representation of the status.
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusFilled:
		return "filled"
	case OrderStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OrderHandle correlates a placed order with its settlement result.
// Handles are assigned sequentially per broker starting at 1.
type OrderHandle uint64

// Order immutable request to trade created during a strategy's decision phase.
type Order struct {
	Handle   OrderHandle
	Symbol   string
	Quantity int64
	Type     OrderType
	// SubmittedAt time of the frame the order was placed in.
	SubmittedAt time.Time
	// SubmittedPrice asset price visible to the strategy when it placed the order.
	SubmittedPrice decimal.Decimal
}

// NewOrder validates and builds an order.
func NewOrder(handle OrderHandle, symbol string, quantity int64, orderType OrderType,
	submittedAt time.Time, submittedPrice decimal.Decimal) (Order, error) {
	if quantity <= 0 {
		return Order{}, errors.Wrapf(ErrInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	if !orderType.IsValid() {
		return Order{}, errors.Errorf("invalid order type %d", orderType)
	}

	return Order{
		Handle:         handle,
		Symbol:         symbol,
		Quantity:       quantity,
		Type:           orderType,
		SubmittedAt:    submittedAt,
		SubmittedPrice: submittedPrice,
	}, nil
}

// Notional returns quantity multiplied by price.
func (o Order) Notional(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(o.Quantity))
}

// String returns a human-readable string representation.
func (o Order) String() string {
	return fmt.Sprintf("#%d %s %d %s", o.Handle, o.Type.String(), o.Quantity, o.Symbol)
}

// ProcessedOrder order tagged with its settlement outcome.
type ProcessedOrder struct {
	Order
	Status OrderStatus
	// Reason is ErrInsufficientFunds, ErrInsufficientHoldings or ErrNoPrice for rejected orders.
	Reason error
	// FillPrice price used for settlement; zero when the asset had no price.
	FillPrice decimal.Decimal
	SettledAt time.Time
}

// Filled reports whether the order was executed.
func (p ProcessedOrder) Filled() bool {
	return p.Status == OrderStatusFilled
}

// String returns a human-readable string representation.
func (p ProcessedOrder) String() string {
	if p.Reason != nil {
		return fmt.Sprintf("%s %s (%s)", p.Order.String(), p.Status.String(), p.Reason.Error())
	}
	return fmt.Sprintf("%s %s @ %s", p.Order.String(), p.Status.String(), p.FillPrice.String())
}
