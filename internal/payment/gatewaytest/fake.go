// Package gatewaytest provides an in-memory payment gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallbiznis/storefront/internal/payment/domain"
)

// Fake records every call and answers from its configured fields.
type Fake struct {
	mu sync.Mutex

	Sessions       map[string]*domain.CheckoutSession
	RetrieveErr    error
	CreateErr      error
	RefundErr      error
	WebhookEvent   domain.Event
	WebhookErr     error
	CreatedInputs  []domain.CheckoutSessionInput
	RefundInputs   []domain.RefundInput
	RetrieveCalls  int
	nextSessionSeq int
	nextRefundSeq  int
}

func New() *Fake {
	return &Fake{Sessions: map[string]*domain.CheckoutSession{}}
}

func (f *Fake) Provider() string { return domain.ProviderStripe }

func (f *Fake) CreateCheckoutSession(_ context.Context, input domain.CheckoutSessionInput) (*domain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreatedInputs = append(f.CreatedInputs, input)
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.nextSessionSeq++
	var total int64
	for _, item := range input.LineItems {
		total += item.UnitAmount * item.Quantity
	}
	session := &domain.CheckoutSession{
		ID:          fmt.Sprintf("cs_test_%d", f.nextSessionSeq),
		URL:         fmt.Sprintf("https://checkout.example.test/c/%d", f.nextSessionSeq),
		Status:      "open",
		AmountTotal: total,
		Metadata:    input.Metadata,
	}
	f.Sessions[session.ID] = session
	return session, nil
}

func (f *Fake) RetrieveCheckoutSession(_ context.Context, sessionID string) (*domain.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.RetrieveCalls++
	if f.RetrieveErr != nil {
		return nil, f.RetrieveErr
	}
	session, ok := f.Sessions[sessionID]
	if !ok {
		return nil, &domain.GatewayError{Provider: domain.ProviderStripe, Operation: "retrieve_checkout_session", StatusCode: 404, Message: "no such session"}
	}
	clone := *session
	return &clone, nil
}

func (f *Fake) CreateRefund(_ context.Context, input domain.RefundInput) (*domain.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.RefundInputs = append(f.RefundInputs, input)
	if f.RefundErr != nil {
		return nil, f.RefundErr
	}
	f.nextRefundSeq++
	refund := &domain.Refund{
		ID:     fmt.Sprintf("re_test_%d", f.nextRefundSeq),
		Status: "succeeded",
	}
	if input.Amount != nil {
		refund.Amount = *input.Amount
	}
	return refund, nil
}

func (f *Fake) VerifyAndParseWebhook(context.Context, []byte, string) (domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WebhookErr != nil {
		return nil, f.WebhookErr
	}
	return f.WebhookEvent, nil
}

// Pay marks a session paid with the given payment intent.
func (f *Fake) Pay(sessionID, paymentIntentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.Sessions[sessionID]; ok {
		session.Status = domain.SessionStatusComplete
		session.PaymentStatus = domain.PaymentStatusPaid
		session.PaymentIntentID = paymentIntentID
	}
}

// Complete marks a session complete with its payment still processing.
func (f *Fake) Complete(sessionID, paymentIntentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.Sessions[sessionID]; ok {
		session.Status = domain.SessionStatusComplete
		session.PaymentStatus = "unpaid"
		session.PaymentIntentID = paymentIntentID
	}
}

// Expire marks a session expired.
func (f *Fake) Expire(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.Sessions[sessionID]; ok {
		session.Status = domain.SessionStatusExpired
	}
}

var _ domain.Gateway = (*Fake)(nil)
