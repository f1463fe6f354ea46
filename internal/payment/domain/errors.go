package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured       = errors.New("payment_gateway_not_configured")
	ErrInvalidSignature    = errors.New("invalid_webhook_signature")
	ErrMissingSignature    = errors.New("missing_webhook_signature")
	ErrInvalidPayload      = errors.New("invalid_webhook_payload")
	ErrGatewayUnavailable  = errors.New("payment_gateway_unavailable")
	ErrInvalidResponse     = errors.New("payment_gateway_invalid_response")
	ErrProviderNotFound    = errors.New("payment_provider_not_found")
	ErrInvalidRefundTarget = errors.New("invalid_refund_target")
)

// GatewayError is a failed call to the payment processor. It unwraps to
// ErrGatewayUnavailable so callers can classify it without knowing the
// provider.
type GatewayError struct {
	Provider   string
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%d): %s", e.Provider, e.Operation, e.StatusCode, detail)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, detail)
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGatewayUnavailable, e.Err}
	}
	return []error{ErrGatewayUnavailable}
}
