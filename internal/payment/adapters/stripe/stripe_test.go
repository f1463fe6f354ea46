package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, apiBase string) *Adapter {
	t.Helper()
	gw, err := NewFactory().NewGateway(paymentdomain.GatewayConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		APIBase:       apiBase,
		Timeout:       2 * time.Second,
		Clock:         clock.NewFakeClock(fixedNow),
	})
	require.NoError(t, err)
	return gw.(*Adapter)
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	adapter := newTestAdapter(t, "")
	payload := []byte(`{"id":"evt_123","type":"charge.succeeded","data":{"object":{}}}`)
	ctx := context.Background()

	event, err := adapter.VerifyAndParseWebhook(ctx, payload, buildStripeSignatureHeader("whsec_test", payload, fixedNow.Unix()))
	require.NoError(t, err)
	assert.IsType(t, paymentdomain.Unrecognized{}, event)

	_, err = adapter.VerifyAndParseWebhook(ctx, payload, buildStripeSignatureHeader("wrong", payload, fixedNow.Unix()))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	stale := fixedNow.Add(-6 * time.Minute).Unix()
	_, err = adapter.VerifyAndParseWebhook(ctx, payload, buildStripeSignatureHeader("whsec_test", payload, stale))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = adapter.VerifyAndParseWebhook(ctx, payload, "garbage")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = adapter.VerifyAndParseWebhook(ctx, payload, "")
	assert.ErrorIs(t, err, paymentdomain.ErrMissingSignature)

	tampered := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	_, err = adapter.VerifyAndParseWebhook(ctx, tampered, buildStripeSignatureHeader("whsec_test", payload, fixedNow.Unix()))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestVerifyWithoutWebhookSecret(t *testing.T) {
	gw, err := NewFactory().NewGateway(paymentdomain.GatewayConfig{SecretKey: "sk_test_123"})
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	_, err = gw.VerifyAndParseWebhook(context.Background(), payload, buildStripeSignatureHeader("whsec_test", payload, time.Now().Unix()))
	assert.ErrorIs(t, err, paymentdomain.ErrNotConfigured)
	assert.NotErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestParseCheckoutEvents(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		want        any
		externalID  string
		orderNumber string
	}{{
		name:        "completed with payment intent",
		payload:     `{"id":"evt_1","type":"checkout.session.completed","created":1740830400,"data":{"object":{"id":"cs_1","status":"complete","payment_status":"paid","payment_intent":"pi_1","metadata":{"orderNumber":"MB-1"}}}}`,
		want:        paymentdomain.CheckoutCompleted{},
		externalID:  "pi_1",
		orderNumber: "MB-1",
	}, {
		name:        "async success with expanded intent",
		payload:     `{"id":"evt_2","type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs_2","payment_status":"paid","payment_intent":{"id":"pi_2"},"metadata":{"orderNumber":"MB-2"}}}}`,
		want:        paymentdomain.AsyncPaymentSucceeded{},
		externalID:  "pi_2",
		orderNumber: "MB-2",
	}, {
		name:        "async failure falls back to session id",
		payload:     `{"id":"evt_3","type":"checkout.session.async_payment_failed","data":{"object":{"id":"cs_3","payment_status":"unpaid","payment_intent":null,"metadata":{"order_number":"MB-3"}}}}`,
		want:        paymentdomain.AsyncPaymentFailed{},
		externalID:  "cs_3",
		orderNumber: "MB-3",
	}, {
		name:        "expired",
		payload:     `{"id":"evt_4","type":"checkout.session.expired","data":{"object":{"id":"cs_4","status":"expired","metadata":{"orderNumber":"MB-4"}}}}`,
		want:        paymentdomain.SessionExpired{},
		externalID:  "cs_4",
		orderNumber: "MB-4",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := parseEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.IsType(t, tt.want, event)

			var session paymentdomain.CheckoutSession
			switch e := event.(type) {
			case paymentdomain.CheckoutCompleted:
				session = e.Session
			case paymentdomain.AsyncPaymentSucceeded:
				session = e.Session
			case paymentdomain.AsyncPaymentFailed:
				session = e.Session
			case paymentdomain.SessionExpired:
				session = e.Session
			}
			assert.Equal(t, tt.externalID, session.ExternalID())
			assert.Equal(t, tt.orderNumber, session.OrderNumber())
			assert.NotEmpty(t, event.Meta().ID)
		})
	}

	_, err := parseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
	_, err = parseEvent([]byte(`{"type":"checkout.session.completed"}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestCreateCheckoutSessionEncodesForm(t *testing.T) {
	var form url.Values
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		headers = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_123","url":"https://checkout.stripe.com/c/cs_123","status":"open","payment_status":"unpaid","metadata":{"orderNumber":"MB-1"}}`))
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL)
	session, err := adapter.CreateCheckoutSession(context.Background(), paymentdomain.CheckoutSessionInput{
		LineItems: []paymentdomain.LineItem{
			{Name: "Chocolate Chip Cookies", Description: "Brown butter", UnitAmount: 450, Quantity: 2},
			{Name: "Fudgy Brownie Squares", UnitAmount: 500, Quantity: 1},
		},
		Currency:      "USD",
		CustomerEmail: "alice@example.com",
		SuccessURL:    "https://shop.test/order/MB-1",
		CancelURL:     "https://shop.test",
		Metadata:      map[string]string{paymentdomain.MetadataOrderNumber: "MB-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_123", session.URL)
	assert.Equal(t, "Bearer sk_test_123", headers.Get("Authorization"))
	assert.Equal(t, "checkout-MB-1", headers.Get("Idempotency-Key"))

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "450", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "2", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "Brown butter", form.Get("line_items[0][price_data][product_data][description]"))
	assert.Equal(t, "Fudgy Brownie Squares", form.Get("line_items[1][price_data][product_data][name]"))
	assert.False(t, form.Has("line_items[1][price_data][product_data][description]"))
	assert.Equal(t, "alice@example.com", form.Get("customer_email"))
	assert.Equal(t, "MB-1", form.Get("metadata[orderNumber]"))
	assert.Equal(t, "MB-1", form.Get("payment_intent_data[metadata][orderNumber]"))
	assert.Equal(t, "MB-1", form.Get("client_reference_id"))
}

func TestCreateRefund(t *testing.T) {
	var form url.Values
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		key = r.Header.Get("Idempotency-Key")
		_, _ = w.Write([]byte(`{"id":"re_1","amount":500,"status":"succeeded"}`))
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL)
	amount := int64(500)
	refund, err := adapter.CreateRefund(context.Background(), paymentdomain.RefundInput{
		PaymentIntentID: "pi_1",
		Amount:          &amount,
		IdempotencyKey:  "refund-1-500-0",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.ID)
	assert.Equal(t, int64(500), refund.Amount)
	assert.Equal(t, "pi_1", form.Get("payment_intent"))
	assert.Equal(t, "500", form.Get("amount"))
	assert.Equal(t, "refund-1-500-0", key)

	_, err = adapter.CreateRefund(context.Background(), paymentdomain.RefundInput{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidRefundTarget)
}

func TestGatewayErrorsAreClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session: cs_x"}}`))
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL)
	_, err := adapter.RetrieveCheckoutSession(context.Background(), "cs_x")
	require.Error(t, err)
	assert.ErrorIs(t, err, paymentdomain.ErrGatewayUnavailable)

	var gatewayErr *paymentdomain.GatewayError
	require.True(t, errors.As(err, &gatewayErr))
	assert.Equal(t, http.StatusNotFound, gatewayErr.StatusCode)
	assert.Equal(t, "resource_missing", gatewayErr.Code)
	assert.Contains(t, gatewayErr.Error(), "No such checkout.session")
}

func TestMissingSecretKeyIsNotConfigured(t *testing.T) {
	gw, err := NewFactory().NewGateway(paymentdomain.GatewayConfig{})
	require.NoError(t, err)

	_, err = gw.RetrieveCheckoutSession(context.Background(), "cs_1")
	assert.ErrorIs(t, err, paymentdomain.ErrNotConfigured)
}
