package domain

import "errors"

var (
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrInvalidOrderID     = errors.New("invalid_order_id")
	ErrInvalidOrderNumber = errors.New("invalid_order_number")
	ErrEmptyOrder         = errors.New("empty_order")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitPrice   = errors.New("invalid_unit_price")
	ErrAlreadyTerminal    = errors.New("already_terminal")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrNoPayment          = errors.New("no_payment")
	ErrConcurrentUpdate   = errors.New("concurrent_update")
	ErrMissingReference   = errors.New("missing_payment_reference")
	ErrInvalidFilter      = errors.New("invalid_status_filter")
	ErrRefundFailed       = errors.New("refund_failed")
)
