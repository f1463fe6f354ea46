package webhook

import (
	"context"
	"errors"
	"strings"

	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Gateway  paymentdomain.Gateway
	OrderSvc orderdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	gateway  paymentdomain.Gateway
	orderSvc orderdomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		log:      p.Log.Named("payment.webhook"),
		gateway:  p.Gateway,
		orderSvc: p.OrderSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (paymentdomain.Event, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, paymentdomain.ErrMissingSignature
	}

	event, err := s.gateway.VerifyAndParseWebhook(ctx, payload, signatureHeader)
	if err != nil {
		return nil, err
	}

	meta := event.Meta()
	ctx = obscontext.WithCorrelationID(ctx, meta.ID)
	ctx = obscontext.WithActor(ctx, "gateway", s.gateway.Provider())
	s.metrics.RecordWebhookEvent(ctx, s.gateway.Provider(), meta.Type)

	if err := s.process(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) process(ctx context.Context, event paymentdomain.Event) error {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_id", event.Meta().ID),
		zap.String("event_type", event.Meta().Type),
	)

	switch e := event.(type) {
	case paymentdomain.CheckoutCompleted:
		return s.markPaid(ctx, log, e.Session)
	case paymentdomain.AsyncPaymentSucceeded:
		return s.markPaid(ctx, log, e.Session)
	case paymentdomain.AsyncPaymentFailed:
		return s.markFailed(ctx, log, e.Session)
	case paymentdomain.SessionExpired:
		return s.markFailed(ctx, log, e.Session)
	default:
		log.Debug("webhook event ignored")
		return nil
	}
}

// markPaid acts only on sessions the gateway reports as paid; delayed
// payment methods complete the session first and settle later.
func (s *Service) markPaid(ctx context.Context, log *zap.Logger, session paymentdomain.CheckoutSession) error {
	orderNumber := session.OrderNumber()
	if orderNumber == "" {
		log.Warn("checkout session without order number", zap.String("session_id", session.ID))
		return nil
	}
	if !session.IsPaid() {
		log.Info("checkout completed without payment, waiting for settlement",
			zap.String("order_number", orderNumber),
			zap.String("payment_status", session.PaymentStatus),
		)
		return nil
	}

	_, err := s.orderSvc.MarkPaid(ctx, orderdomain.MarkPaidRequest{
		OrderNumber: orderNumber,
		SessionID:   session.ID,
		ExternalID:  session.ExternalID(),
		Trigger:     orderdomain.TriggerWebhook,
	})
	return s.settle(log, orderNumber, err)
}

func (s *Service) markFailed(ctx context.Context, log *zap.Logger, session paymentdomain.CheckoutSession) error {
	orderNumber := session.OrderNumber()
	if orderNumber == "" {
		log.Warn("checkout session without order number", zap.String("session_id", session.ID))
		return nil
	}

	_, err := s.orderSvc.MarkFailed(ctx, orderdomain.MarkFailedRequest{
		OrderNumber: orderNumber,
		SessionID:   session.ID,
		ExternalID:  session.ExternalID(),
		Trigger:     orderdomain.TriggerWebhook,
	})
	return s.settle(log, orderNumber, err)
}

// settle acknowledges events for orders this storefront does not know, so
// the gateway stops redelivering them. Other failures are returned and the
// delivery is retried.
func (s *Service) settle(log *zap.Logger, orderNumber string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, orderdomain.ErrOrderNotFound) {
		log.Warn("webhook for unknown order", zap.String("order_number", orderNumber))
		return nil
	}
	log.Error("webhook processing failed", zap.String("order_number", orderNumber), zap.Error(err))
	return err
}
