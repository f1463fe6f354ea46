package service

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSweepLimit = 100

// MarkPaid records the successful payment and moves a PENDING order to PAID.
// The payment row is written whatever the order status is, since it mirrors
// what the gateway reports. Orders already PAID are returned unchanged;
// a new payment landing on a FAILED, CANCELLED or REFUNDED order is flagged
// once for manual follow-up but never moves it.
func (s *Service) MarkPaid(ctx context.Context, req domain.MarkPaidRequest) (*domain.Order, error) {
	externalID := firstNonEmpty(req.ExternalID, req.SessionID)
	if externalID == "" {
		return nil, domain.ErrMissingReference
	}
	order, err := s.findByNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("order_number", order.OrderNumber),
		zap.String("trigger", string(req.Trigger)),
	)
	provider := s.provider()
	now := s.clock.Now()

	existing, err := s.paymentRepo.FindByExternalID(ctx, s.db, provider, externalID)
	if err != nil {
		return nil, err
	}
	redelivered := existing != nil && existing.OrderID == order.ID && existing.Status == paymentdomain.PaymentStatusSucceeded

	var transitioned bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Upsert(ctx, tx, &paymentdomain.Payment{
			ID:          s.genID.Generate(),
			OrderID:     order.ID,
			Provider:    provider,
			ExternalID:  externalID,
			Status:      paymentdomain.PaymentStatusSucceeded,
			AmountCents: order.SubtotalCents,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}

		ok, err := s.repo.MarkPaid(ctx, tx, order.ID, strings.TrimSpace(req.SessionID), now)
		if err != nil {
			return err
		}
		transitioned = ok
		return nil
	})
	if err != nil {
		log.Error("mark paid failed", zap.Error(err))
		return nil, err
	}
	s.metrics.RecordPaymentRecord(ctx, provider, string(paymentdomain.PaymentStatusSucceeded))

	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case transitioned:
		s.metrics.RecordOrderTransition(ctx, string(domain.OrderStatusPending), string(domain.OrderStatusPaid), string(req.Trigger))
		log.Info("order paid", zap.String("external_id", externalID))
	case updated.Status == domain.OrderStatusPaid:
		log.Debug("order already paid", zap.String("external_id", externalID))
	case redelivered:
		// The payment was recorded before the order left PAID.
		log.Debug("payment already recorded for terminal order",
			zap.String("status", string(updated.Status)),
			zap.String("external_id", externalID),
		)
	default:
		log.Warn("payment received for terminal order",
			zap.String("status", string(updated.Status)),
			zap.String("external_id", externalID),
		)
		s.writeAudit(ctx, auditdomain.ActionPaymentAfterTerminal, updated, map[string]any{
			"status":      string(updated.Status),
			"external_id": externalID,
			"trigger":     string(req.Trigger),
		})
	}
	return updated, nil
}

// MarkFailed moves a PENDING order to FAILED. A FAILED payment row is kept
// only for orders that end up FAILED, and never replaces a SUCCEEDED row.
func (s *Service) MarkFailed(ctx context.Context, req domain.MarkFailedRequest) (*domain.Order, error) {
	order, err := s.findByNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("order_number", order.OrderNumber),
		zap.String("trigger", string(req.Trigger)),
	)
	provider := s.provider()
	externalID := firstNonEmpty(req.ExternalID, req.SessionID)
	now := s.clock.Now()

	var transitioned, recorded bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkFailed(ctx, tx, order.ID, now)
		if err != nil {
			return err
		}
		transitioned = ok
		if externalID == "" || (!ok && order.Status != domain.OrderStatusFailed) {
			return nil
		}

		existing, err := s.paymentRepo.FindByExternalID(ctx, tx, provider, externalID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == paymentdomain.PaymentStatusSucceeded {
			return nil
		}
		recorded = true
		return s.paymentRepo.Upsert(ctx, tx, &paymentdomain.Payment{
			ID:          s.genID.Generate(),
			OrderID:     order.ID,
			Provider:    provider,
			ExternalID:  externalID,
			Status:      paymentdomain.PaymentStatusFailed,
			AmountCents: order.SubtotalCents,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		log.Error("mark failed failed", zap.Error(err))
		return nil, err
	}
	if recorded {
		s.metrics.RecordPaymentRecord(ctx, provider, string(paymentdomain.PaymentStatusFailed))
	}
	if transitioned {
		s.metrics.RecordOrderTransition(ctx, string(domain.OrderStatusPending), string(domain.OrderStatusFailed), string(req.Trigger))
		log.Info("order failed")
	} else {
		log.Debug("order not pending, failure ignored", zap.String("status", string(order.Status)))
	}

	return s.reload(ctx, order.ID)
}

// ExpireIfStale fails a PENDING order created strictly before now minus the
// pending window. It reports whether this call moved the order.
func (s *Service) ExpireIfStale(ctx context.Context, orderNumber string) (bool, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return false, domain.ErrInvalidOrderNumber
	}

	now := s.clock.Now()
	cutoff := now.Add(-s.policy.Get().PendingExpiry())
	ok, err := s.repo.ExpirePendingIfOlderThan(ctx, s.db, orderNumber, cutoff, now)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.RecordOrderTransition(ctx, string(domain.OrderStatusPending), string(domain.OrderStatusFailed), string(domain.TriggerExpiry))
		logger.WithContext(ctx, s.log).Info("pending order expired",
			zap.String("order_number", orderNumber),
			zap.Time("cutoff", cutoff),
		)
	}
	return ok, nil
}

// Reconcile pulls the gateway's view of a PENDING order and applies it, then
// falls back to expiry. A completed session whose payment is still clearing
// leaves the order PENDING regardless of age. Gateway and write failures are logged, never
// returned; the caller always gets the order as currently stored.
func (s *Service) Reconcile(ctx context.Context, orderNumber string, trigger domain.Trigger) (*domain.Order, error) {
	order, err := s.findByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return order, nil
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("order_number", order.OrderNumber),
		zap.String("trigger", string(trigger)),
	)

	if order.GatewaySessionID != nil && *order.GatewaySessionID != "" && s.gateway != nil {
		session, err := s.retrieveSession(ctx, *order.GatewaySessionID)
		switch {
		case err != nil:
			log.Warn("checkout session lookup failed", zap.Error(err))
		case session.IsPaid():
			updated, err := s.MarkPaid(ctx, domain.MarkPaidRequest{
				OrderNumber: order.OrderNumber,
				SessionID:   session.ID,
				ExternalID:  session.ExternalID(),
				Trigger:     trigger,
			})
			if err != nil {
				// The gateway says paid; expiring now would contradict it.
				log.Error("reconcile could not record payment", zap.Error(err))
				return order, nil
			}
			return updated, nil
		case session.IsExpired():
			updated, err := s.MarkFailed(ctx, domain.MarkFailedRequest{
				OrderNumber: order.OrderNumber,
				SessionID:   session.ID,
				ExternalID:  session.ExternalID(),
				Trigger:     trigger,
			})
			if err != nil {
				log.Warn("reconcile could not record failure", zap.Error(err))
				break
			}
			return updated, nil
		case session.AwaitingPayment():
			// The async payment webhook settles it; expiring would race it.
			log.Debug("checkout complete, payment still processing")
			return order, nil
		}
	}

	expired, err := s.ExpireIfStale(ctx, order.OrderNumber)
	if err != nil {
		log.Warn("pending expiry check failed", zap.Error(err))
		return order, nil
	}
	if !expired {
		return order, nil
	}
	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		log.Warn("reload after expiry failed", zap.Error(err))
		return order, nil
	}
	return updated, nil
}

func (s *Service) retrieveSession(ctx context.Context, sessionID string) (*paymentdomain.CheckoutSession, error) {
	timeout := s.policy.Get().ReconcileTimeout
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := s.gateway.RetrieveCheckoutSession(callCtx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, paymentdomain.ErrInvalidResponse
	}
	return session, nil
}

// SweepPending reconciles PENDING orders older than MinAge, oldest first.
// It is the compensation path for lost webhooks and abandoned status pages.
func (s *Service) SweepPending(ctx context.Context, req domain.SweepRequest) (domain.SweepResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	before := s.clock.Now().Add(-req.MinAge)

	orders, err := s.repo.ListPendingCreatedBefore(ctx, s.db, before, limit)
	if err != nil {
		return domain.SweepResult{}, err
	}

	result := domain.SweepResult{Scanned: len(orders)}
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		updated, err := s.Reconcile(ctx, order.OrderNumber, domain.TriggerSweep)
		if err != nil {
			result.Errors++
			s.log.Warn("sweep reconcile failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
			continue
		}
		switch updated.Status {
		case domain.OrderStatusPaid:
			result.Paid++
		case domain.OrderStatusFailed:
			result.Failed++
		default:
			result.Pending++
		}
	}

	if result.Scanned > 0 {
		logger.WithContext(ctx, s.log).Info("pending sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("paid", result.Paid),
			zap.Int("failed", result.Failed),
			zap.Int("pending", result.Pending),
			zap.Int("errors", result.Errors),
		)
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
