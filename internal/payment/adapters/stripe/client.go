package stripe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultAPIBase = "https://api.stripe.com"
	defaultTimeout = 12 * time.Second
)

var tracer = otel.Tracer("storefront/payment/stripe")

type stripeCheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent json.RawMessage   `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeRefund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type stripeClient struct {
	apiKey  string
	apiBase string
	client  *http.Client
}

func newStripeClient(apiKey string, apiBase string, timeout time.Duration) *stripeClient {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &stripeClient{
		apiKey:  strings.TrimSpace(apiKey),
		apiBase: apiBase,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *stripeClient) createCheckoutSession(ctx context.Context, input paymentdomain.CheckoutSessionInput) (stripeCheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "payment")
	for i, item := range input.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		values.Set(prefix+"[price_data][currency]", strings.ToLower(input.Currency))
		values.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		values.Set(prefix+"[price_data][product_data][name]", item.Name)
		if description := strings.TrimSpace(item.Description); description != "" {
			values.Set(prefix+"[price_data][product_data][description]", description)
		}
		values.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		values.Set("customer_email", email)
	}
	values.Set("success_url", input.SuccessURL)
	values.Set("cancel_url", input.CancelURL)
	for key, value := range input.Metadata {
		values.Set("metadata["+key+"]", value)
		values.Set("payment_intent_data[metadata]["+key+"]", value)
	}

	idempotencyKey := ""
	if orderNumber := input.Metadata[paymentdomain.MetadataOrderNumber]; orderNumber != "" {
		values.Set("client_reference_id", orderNumber)
		idempotencyKey = "checkout-" + orderNumber
	}

	var session stripeCheckoutSession
	err := c.doRequest(ctx, "create_checkout_session", http.MethodPost, "/v1/checkout/sessions", values, idempotencyKey, &session)
	if err != nil {
		return stripeCheckoutSession{}, err
	}
	if session.ID == "" {
		return stripeCheckoutSession{}, paymentdomain.ErrInvalidResponse
	}
	return session, nil
}

func (c *stripeClient) retrieveCheckoutSession(ctx context.Context, sessionID string) (stripeCheckoutSession, error) {
	var session stripeCheckoutSession
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.doRequest(ctx, "retrieve_checkout_session", http.MethodGet, path, nil, "", &session); err != nil {
		return stripeCheckoutSession{}, err
	}
	if session.ID == "" {
		return stripeCheckoutSession{}, paymentdomain.ErrInvalidResponse
	}
	return session, nil
}

func (c *stripeClient) createRefund(ctx context.Context, input paymentdomain.RefundInput) (stripeRefund, error) {
	values := url.Values{}
	values.Set("payment_intent", input.PaymentIntentID)
	if input.Amount != nil {
		values.Set("amount", strconv.FormatInt(*input.Amount, 10))
	}

	var refund stripeRefund
	if err := c.doRequest(ctx, "create_refund", http.MethodPost, "/v1/refunds", values, input.IdempotencyKey, &refund); err != nil {
		return stripeRefund{}, err
	}
	if refund.ID == "" {
		return stripeRefund{}, paymentdomain.ErrInvalidResponse
	}
	return refund, nil
}

func (c *stripeClient) doRequest(
	ctx context.Context,
	operation string,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) (err error) {
	if c.apiKey == "" {
		return paymentdomain.ErrNotConfigured
	}

	ctx, span := tracer.Start(ctx, "stripe."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("payment.provider", paymentdomain.ProviderStripe),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, operation+" failed")
		}
		span.End()
	}()

	var body io.Reader = http.NoBody
	if values != nil {
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &paymentdomain.GatewayError{
			Provider:  paymentdomain.ProviderStripe,
			Operation: operation,
			Err:       err,
		}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		gatewayErr := &paymentdomain.GatewayError{
			Provider:   paymentdomain.ProviderStripe,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    "stripe_request_failed",
		}
		var stripeErr stripeErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&stripeErr); decodeErr == nil {
			if message := strings.TrimSpace(stripeErr.Error.Message); message != "" {
				gatewayErr.Message = message
			}
			gatewayErr.Code = strings.TrimSpace(stripeErr.Error.Code)
		}
		return gatewayErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &paymentdomain.GatewayError{
			Provider:  paymentdomain.ProviderStripe,
			Operation: operation,
			Err:       paymentdomain.ErrInvalidResponse,
		}
	}
	return nil
}

// paymentIntentID accepts both the bare id and an expanded object.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return strings.TrimSpace(expanded.ID)
	}
	return ""
}

func (s stripeCheckoutSession) toDomain() *paymentdomain.CheckoutSession {
	return &paymentdomain.CheckoutSession{
		ID:              s.ID,
		URL:             s.URL,
		Status:          s.Status,
		PaymentStatus:   s.PaymentStatus,
		PaymentIntentID: paymentIntentID(s.PaymentIntent),
		AmountTotal:     s.AmountTotal,
		Metadata:        normalizeMetadata(s.Metadata),
	}
}

// normalizeMetadata maps the snake_case order key onto the canonical one.
func normalizeMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return map[string]string{}
	}
	if metadata[paymentdomain.MetadataOrderNumber] == "" {
		if legacy := strings.TrimSpace(metadata["order_number"]); legacy != "" {
			metadata[paymentdomain.MetadataOrderNumber] = legacy
		}
	}
	return metadata
}
