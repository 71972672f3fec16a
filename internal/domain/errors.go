package domain

import "github.com/pkg/errors"

// Validation errors are returned to the caller immediately and indicate a bug in the strategy
// or in the run configuration.
var (
	ErrInvalidPhase    = errors.New("invalid phase")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidFrame    = errors.New("invalid time frame")
)

// Rejection reasons are attached to processed orders and never returned from PlaceOrder.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrNoPrice              = errors.New("no price")
)

// rejectionReasons maps persisted reason strings back to sentinels.
var rejectionReasons = map[string]error{
	ErrInsufficientFunds.Error():    ErrInsufficientFunds,
	ErrInsufficientHoldings.Error(): ErrInsufficientHoldings,
	ErrNoPrice.Error():              ErrNoPrice,
}

// ParseRejectionReason returns the sentinel for a persisted reason, nil for an empty string.
func ParseRejectionReason(reason string) error {
	if reason == "" {
		return nil
	}
	if err, ok := rejectionReasons[reason]; ok {
		return err
	}
	return errors.New(reason)
}
