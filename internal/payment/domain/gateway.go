package domain

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
)

const MetadataOrderNumber = "orderNumber"

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

type CheckoutSessionInput struct {
	LineItems     []LineItem
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	// Metadata is copied onto the session and the derived payment intent.
	Metadata map[string]string
}

type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
	AmountTotal     int64
	Metadata        map[string]string
}

const (
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
	PaymentStatusPaid     = "paid"
)

// IsPaid reports whether the gateway considers the session paid.
func (s CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

func (s CheckoutSession) IsExpired() bool {
	return s.Status == SessionStatusExpired
}

// AwaitingPayment reports a completed session whose payment is still
// clearing, as with delayed payment methods.
func (s CheckoutSession) AwaitingPayment() bool {
	return s.Status == SessionStatusComplete && !s.IsPaid()
}

// ExternalID is the payment intent when present, else the session id.
func (s CheckoutSession) ExternalID() string {
	if id := strings.TrimSpace(s.PaymentIntentID); id != "" {
		return id
	}
	return s.ID
}

func (s CheckoutSession) OrderNumber() string {
	if s.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(s.Metadata[MetadataOrderNumber])
}

type RefundInput struct {
	PaymentIntentID string
	// Amount nil refunds whatever is left on the payment.
	Amount         *int64
	IdempotencyKey string
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Gateway is the payment processor as seen by the order lifecycle. One
// instance is built at startup from configuration and injected.
type Gateway interface {
	Provider() string
	CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	CreateRefund(ctx context.Context, input RefundInput) (*Refund, error)
	// VerifyAndParseWebhook fails with ErrNotConfigured when no webhook
	// secret is set and ErrInvalidSignature when verification fails.
	VerifyAndParseWebhook(ctx context.Context, payload []byte, signatureHeader string) (Event, error)
}

// GatewayFactory builds a Gateway for one provider.
type GatewayFactory interface {
	Provider() string
	NewGateway(cfg GatewayConfig) (Gateway, error)
}

type GatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
	Timeout       time.Duration
	Clock         clock.Clock
	// WebhookTolerance is read on every verification so policy reloads apply.
	WebhookTolerance func() time.Duration
}
