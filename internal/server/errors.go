package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []ValidationError `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAdminNotConfigured = errors.New("admin_not_configured")
	ErrRateLimited        = errors.New("rate_limited")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const internalErrorMessage = "Unexpected server error"

// Error kinds reported to the request logger.
const (
	kindNotFound            = "not_found"
	kindInvalidInput        = "invalid_input"
	kindUnauthorized        = "unauthorized"
	kindConflict            = "conflict"
	kindUpstreamUnavailable = "upstream_unavailable"
	kindSignatureInvalid    = "signature_invalid"
	kindInternal            = "internal"
)

type errorRule struct {
	target  error
	status  int
	kind    string
	code    string
	message string
}

// errorRules is matched in order. Gateway configuration problems come before
// checkout and refund failures because both wrap them.
var errorRules = []errorRule{
	{paymentdomain.ErrNotConfigured, http.StatusServiceUnavailable, kindUpstreamUnavailable, "stripe_not_configured", "Payments are not configured"},
	{ErrAdminNotConfigured, http.StatusServiceUnavailable, kindUpstreamUnavailable, "admin_not_configured", "Admin API is not configured"},
	{ErrUnauthorized, http.StatusUnauthorized, kindUnauthorized, "unauthorized", "Unauthorized"},
	{ErrRateLimited, http.StatusTooManyRequests, kindUpstreamUnavailable, "rate_limited", "Too many requests"},
	{ErrServiceUnavailable, http.StatusServiceUnavailable, kindUpstreamUnavailable, "service_unavailable", "Service unavailable"},

	{paymentdomain.ErrMissingSignature, http.StatusBadRequest, kindInvalidInput, "missing_stripe_signature", "Missing Stripe signature"},
	{paymentdomain.ErrInvalidSignature, http.StatusBadRequest, kindSignatureInvalid, "invalid_webhook_signature", "Invalid webhook signature"},
	{paymentdomain.ErrInvalidPayload, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid webhook payload"},

	{orderdomain.ErrOrderNotFound, http.StatusNotFound, kindNotFound, "order_not_found", "Order not found"},
	{productdomain.ErrNotFound, http.StatusNotFound, kindNotFound, "product_not_found", "Product not found"},
	{ErrNotFound, http.StatusNotFound, kindNotFound, "not_found", "Not found"},
	{gorm.ErrRecordNotFound, http.StatusNotFound, kindNotFound, "not_found", "Not found"},

	{checkoutdomain.ErrEmptyCart, http.StatusBadRequest, kindInvalidInput, "empty_cart", "Cart is empty"},
	{checkoutdomain.ErrInvalidQuantity, http.StatusBadRequest, kindInvalidInput, "invalid_quantity", "Quantity must be a positive whole number"},
	{orderdomain.ErrInvalidQuantity, http.StatusBadRequest, kindInvalidInput, "invalid_quantity", "Quantity must be a positive whole number"},
	{checkoutdomain.ErrInvalidCartItems, http.StatusBadRequest, kindInvalidInput, "invalid_cart_items", "One or more cart items are unavailable"},
	{orderdomain.ErrInvalidAmount, http.StatusBadRequest, kindInvalidInput, "invalid_amount", "Refund amount must be between 1 and the order subtotal"},
	{checkoutdomain.ErrInvalidPayload, http.StatusBadRequest, kindInvalidInput, "invalid_checkout_payload", "Invalid checkout payload"},

	{ErrInvalidRequest, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid request"},
	{orderdomain.ErrInvalidOrderID, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid order id"},
	{orderdomain.ErrInvalidOrderNumber, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid order number"},
	{orderdomain.ErrInvalidFilter, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid status filter"},
	{orderdomain.ErrEmptyOrder, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Order has no items"},
	{orderdomain.ErrInvalidUnitPrice, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid unit price"},
	{productdomain.ErrInvalidSlug, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid product slug"},
	{auditdomain.ErrInvalidAction, http.StatusBadRequest, kindInvalidInput, "invalid_request", "Invalid audit action"},

	{orderdomain.ErrAlreadyTerminal, http.StatusConflict, kindConflict, "already_terminal", "Order is already closed"},
	{orderdomain.ErrInvalidStatus, http.StatusConflict, kindConflict, "invalid_status", "Order status does not allow this action"},
	{orderdomain.ErrNoPayment, http.StatusConflict, kindConflict, "no_payment", "Order has no successful payment"},
	{orderdomain.ErrConcurrentUpdate, http.StatusConflict, kindConflict, "concurrent_update", "Order was changed by another request"},

	{checkoutdomain.ErrCheckoutFailed, http.StatusBadGateway, kindUpstreamUnavailable, "stripe_checkout_failed", "Unable to start checkout"},
	{orderdomain.ErrRefundFailed, http.StatusBadGateway, kindUpstreamUnavailable, "stripe_refund_failed", "Unable to refund payment"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	status, _, payload := resolveError(err)
	return status, payload
}

// classifyErrorForLog reports the error kind and public code for request logs.
func classifyErrorForLog(err error) (string, string) {
	_, kind, payload := resolveError(err)
	return kind, payload.Code
}

func resolveError(err error) (int, string, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, kindInternal, errorPayload{
			Code:    "internal_error",
			Message: internalErrorMessage,
		}
	}

	if fields := bindingFields(err); fields != nil {
		return http.StatusBadRequest, kindInvalidInput, errorPayload{
			Code:    "invalid_request",
			Message: "Invalid request",
			Fields:  fields,
		}
	}

	var fieldErr *checkoutdomain.FieldError
	if errors.As(err, &fieldErr) && fieldErr != nil {
		return http.StatusBadRequest, kindInvalidInput, errorPayload{
			Code:    "invalid_checkout_payload",
			Message: "Invalid checkout payload",
			Fields: []ValidationError{{
				Field:   fieldErr.Field,
				Code:    "invalid",
				Message: "invalid value",
			}},
		}
	}

	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, rule.kind, errorPayload{
				Code:    rule.code,
				Message: rule.message,
			}
		}
	}

	return http.StatusInternalServerError, kindInternal, errorPayload{
		Code:    "internal_error",
		Message: internalErrorMessage,
	}
}

// bindingFields flattens request binding failures into the fields list. It
// returns nil when err is not a binding failure.
func bindingFields(err error) []ValidationError {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr.Errors
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   lowerFirst(fe.Field()),
			Code:    fe.Tag(),
			Message: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte", "gt":
		return "must be at least " + fe.Param()
	case "max", "lte", "lt":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "invalid value"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
