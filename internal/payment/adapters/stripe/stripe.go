package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
)

const (
	eventCheckoutCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	eventSessionExpired        = "checkout.session.expired"

	defaultTolerance = 5 * time.Minute
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return paymentdomain.ProviderStripe
}

// NewGateway never fails on missing secrets: an unconfigured gateway is
// reported per call so the rest of the storefront keeps serving.
func (f *Factory) NewGateway(cfg paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	tolerance := cfg.WebhookTolerance
	if tolerance == nil {
		tolerance = func() time.Duration { return defaultTolerance }
	}
	return &Adapter{
		client:        newStripeClient(cfg.SecretKey, cfg.APIBase, cfg.Timeout),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock:         clk,
		tolerance:     tolerance,
	}, nil
}

type Adapter struct {
	client        *stripeClient
	webhookSecret string
	clock         clock.Clock
	tolerance     func() time.Duration
}

func (a *Adapter) Provider() string {
	return paymentdomain.ProviderStripe
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, input paymentdomain.CheckoutSessionInput) (*paymentdomain.CheckoutSession, error) {
	session, err := a.client.createCheckoutSession(ctx, input)
	if err != nil {
		return nil, err
	}
	return session.toDomain(), nil
}

func (a *Adapter) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*paymentdomain.CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, paymentdomain.ErrInvalidResponse
	}
	session, err := a.client.retrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.toDomain(), nil
}

func (a *Adapter) CreateRefund(ctx context.Context, input paymentdomain.RefundInput) (*paymentdomain.Refund, error) {
	if strings.TrimSpace(input.PaymentIntentID) == "" {
		return nil, paymentdomain.ErrInvalidRefundTarget
	}
	refund, err := a.client.createRefund(ctx, input)
	if err != nil {
		return nil, err
	}
	return &paymentdomain.Refund{
		ID:     refund.ID,
		Amount: refund.Amount,
		Status: refund.Status,
	}, nil
}

func (a *Adapter) VerifyAndParseWebhook(ctx context.Context, payload []byte, signatureHeader string) (paymentdomain.Event, error) {
	if a.webhookSecret == "" {
		return nil, paymentdomain.ErrNotConfigured
	}
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		return nil, paymentdomain.ErrMissingSignature
	}
	if err := a.verify(payload, signatureHeader); err != nil {
		return nil, err
	}
	return parseEvent(payload)
}

func (a *Adapter) verify(payload []byte, header string) error {
	timestamp, signatures, err := parseStripeSignature(header)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if tolerance := a.tolerance(); tolerance > 0 {
		age := a.clock.Now().Sub(time.Unix(seconds, 0))
		if age > tolerance || age < -tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

func parseEvent(payload []byte) (paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	meta := paymentdomain.EventMeta{
		ID:        event.ID,
		Type:      strings.TrimSpace(event.Type),
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}

	switch meta.Type {
	case eventCheckoutCompleted, eventAsyncPaymentSucceeded, eventAsyncPaymentFailed, eventSessionExpired:
	default:
		return paymentdomain.Unrecognized{EventMeta: meta}, nil
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	checkout := *session.toDomain()

	switch meta.Type {
	case eventCheckoutCompleted:
		return paymentdomain.CheckoutCompleted{EventMeta: meta, Session: checkout}, nil
	case eventAsyncPaymentSucceeded:
		return paymentdomain.AsyncPaymentSucceeded{EventMeta: meta, Session: checkout}, nil
	case eventAsyncPaymentFailed:
		return paymentdomain.AsyncPaymentFailed{EventMeta: meta, Session: checkout}, nil
	default:
		return paymentdomain.SessionExpired{EventMeta: meta, Session: checkout}, nil
	}
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

var _ paymentdomain.Gateway = (*Adapter)(nil)
