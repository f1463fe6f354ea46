package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	gatewayErr := &paymentdomain.GatewayError{
		Provider:   paymentdomain.ProviderStripe,
		Operation:  "create_refund",
		StatusCode: 500,
		Message:    "card_declined for cus_123",
	}

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
		{"order not found wrapped", fmt.Errorf("load: %w", orderdomain.ErrOrderNotFound), http.StatusNotFound, "order_not_found"},
		{"checkout gateway failure", fmt.Errorf("%w: %w", checkoutdomain.ErrCheckoutFailed, gatewayErr), http.StatusBadGateway, "stripe_checkout_failed"},
		{"checkout without gateway", fmt.Errorf("%w: %w", checkoutdomain.ErrCheckoutFailed, paymentdomain.ErrNotConfigured), http.StatusServiceUnavailable, "stripe_not_configured"},
		{"refund gateway failure", fmt.Errorf("%w: %w", orderdomain.ErrRefundFailed, gatewayErr), http.StatusBadGateway, "stripe_refund_failed"},
		{"refund without gateway", paymentdomain.ErrNotConfigured, http.StatusServiceUnavailable, "stripe_not_configured"},
		{"terminal", orderdomain.ErrAlreadyTerminal, http.StatusConflict, "already_terminal"},
		{"no payment", orderdomain.ErrNoPayment, http.StatusConflict, "no_payment"},
		{"invalid amount", orderdomain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"bad signature", paymentdomain.ErrInvalidSignature, http.StatusBadRequest, "invalid_webhook_signature"},
		{"field error", &checkoutdomain.FieldError{Field: "customerPhone", Err: checkoutdomain.ErrInvalidPayload}, http.StatusBadRequest, "invalid_checkout_payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, payload.Code)
			assert.NotEmpty(t, payload.Message)
		})
	}
}

func TestMapErrorMasksInternalDetail(t *testing.T) {
	_, payload := mapError(errors.New("dial tcp 10.0.0.5:5432: secret host"))
	assert.Equal(t, internalErrorMessage, payload.Message)

	gatewayErr := &paymentdomain.GatewayError{Provider: "stripe", Operation: "create_refund", Message: "cus_123 declined"}
	_, payload = mapError(fmt.Errorf("%w: %w", orderdomain.ErrRefundFailed, gatewayErr))
	assert.NotContains(t, payload.Message, "cus_123")
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(paymentdomain.ErrInvalidSignature)
	assert.Equal(t, "signature_invalid", kind)
	assert.Equal(t, "invalid_webhook_signature", code)

	kind, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal", kind)
	assert.Equal(t, "internal_error", code)

	kind, _ = classifyErrorForLog(orderdomain.ErrConcurrentUpdate)
	assert.Equal(t, "conflict", kind)
}
