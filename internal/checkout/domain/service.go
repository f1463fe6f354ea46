package domain

import (
	"context"
	"errors"
)

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error)
}

// CartItem is one line as submitted by the storefront. Quantity keeps the
// client's JSON number so fractional values can be rejected explicitly.
type CartItem struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

type CreateSessionRequest struct {
	Items         []CartItem `json:"items"`
	CustomerEmail *string    `json:"customerEmail"`
	CustomerPhone *string    `json:"customerPhone"`
	// Origin is the storefront base URL used for default redirect targets.
	Origin string `json:"-"`
}

type CreateSessionResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
	OrderNumber string `json:"orderNumber"`
}

var (
	ErrInvalidPayload   = errors.New("invalid_checkout_payload")
	ErrEmptyCart        = errors.New("empty_cart")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidCartItems = errors.New("invalid_cart_items")
	ErrCheckoutFailed   = errors.New("stripe_checkout_failed")
)

// FieldError names the offending request field of an ErrInvalidPayload.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Err.Error() + ": " + e.Field
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
