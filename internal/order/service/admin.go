package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/zap"
)

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	page := req.Pagination.Normalize()

	filter := domain.ListFilter{
		Offset: page.Offset(),
		Limit:  page.PageSize,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return nil, domain.ErrInvalidFilter
		}
		filter.Status = &status
	}

	orders, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	views, err := s.adminViews(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &domain.ListResponse{
		Items:    views,
		PageInfo: pagination.BuildPageInfo(page, total),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.AdminOrder, error) {
	order, err := s.findForAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.adminView(ctx, order)
}

// Cancel refunds PAID orders in full before cancelling them. PENDING and
// FAILED orders are cancelled directly.
func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.AdminOrder, error) {
	order, err := s.findForAdmin(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusCancelled) {
		return nil, domain.ErrAlreadyTerminal
	}

	log := logger.WithContext(ctx, s.log).With(zap.String("order_number", order.OrderNumber))
	metadata := map[string]any{"previous_status": string(order.Status)}

	if order.Status == domain.OrderStatusPaid {
		remaining, err := s.refundableCents(ctx, order)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			var amount *int64
			if remaining < order.SubtotalCents {
				amount = &remaining
			}
			refund, err := s.refundAtGateway(ctx, order, amount, "cancel")
			if err != nil {
				log.Error("cancel refund failed", zap.Error(err))
				return nil, err
			}
			metadata["refund_id"] = refund.ID
			metadata["refund_amount_cents"] = refund.Amount
		}
	}

	now := s.clock.Now()
	ok, err := s.repo.UpdateStatus(ctx, s.db, order.ID, order.Status, domain.StatusUpdate{
		Status:      domain.OrderStatusCancelled,
		CancelledAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostUpdate(ctx, order)
	}

	s.metrics.RecordOrderTransition(ctx, string(order.Status), string(domain.OrderStatusCancelled), string(domain.TriggerAdminCancel))
	log.Info("order cancelled", zap.String("previous_status", string(order.Status)))

	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.writeAudit(ctx, auditdomain.ActionOrderCancelled, updated, metadata)
	return s.adminView(ctx, updated)
}

// Refund refunds a PAID order fully or partially, bounded by what earlier
// refunds left. A refund that settles the balance moves the order to
// REFUNDED; anything less keeps it PAID. The refund summary on the order reflects the latest refund
// only; earlier refunds remain visible as payment rows.
func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (*domain.AdminOrder, error) {
	order, err := s.findForAdmin(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusRefunded) {
		return nil, domain.ErrInvalidStatus
	}

	remaining, err := s.refundableCents(ctx, order)
	if err != nil {
		return nil, err
	}
	amount := remaining
	requested := req.AmountCents
	if requested != nil {
		amount = *requested
		if amount < 1 || amount > order.SubtotalCents || amount > remaining {
			return nil, domain.ErrInvalidAmount
		}
	} else if remaining < order.SubtotalCents {
		requested = &remaining
	}
	if amount < 1 {
		return nil, domain.ErrInvalidAmount
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("order_number", order.OrderNumber),
		zap.Int64("amount_cents", amount),
	)

	refund, err := s.refundAtGateway(ctx, order, requested, "refund")
	if err != nil {
		log.Error("refund failed", zap.Error(err))
		return nil, err
	}

	next := domain.OrderStatusPaid
	if amount >= remaining {
		next = domain.OrderStatusRefunded
	}

	now := s.clock.Now()
	ok, err := s.repo.UpdateStatus(ctx, s.db, order.ID, domain.OrderStatusPaid, domain.StatusUpdate{
		Status:            next,
		RefundAmountCents: &amount,
		RefundedAt:        &now,
		UpdatedAt:         now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Error("refund issued but order changed concurrently", zap.String("refund_id", refund.ID))
		return nil, s.lostUpdate(ctx, order)
	}

	s.metrics.RecordOrderTransition(ctx, string(domain.OrderStatusPaid), string(next), string(domain.TriggerAdminRefund))
	log.Info("order refunded", zap.String("status", string(next)), zap.String("refund_id", refund.ID))

	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.writeAudit(ctx, auditdomain.ActionOrderRefunded, updated, map[string]any{
		"refund_id":    refund.ID,
		"amount_cents": amount,
		"full":         next == domain.OrderStatusRefunded,
	})
	return s.adminView(ctx, updated)
}

// refundAtGateway refunds the order's successful payment and records the
// REFUNDED row before any order status change, so a refund issued at the
// gateway is never lost locally. amount nil refunds the remaining balance.
func (s *Service) refundAtGateway(ctx context.Context, order *domain.Order, amount *int64, purpose string) (*paymentdomain.Refund, error) {
	if s.gateway == nil {
		return nil, paymentdomain.ErrNotConfigured
	}

	payment, err := s.paymentRepo.FindSucceededByOrderID(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNoPayment
	}

	previous, err := s.paymentRepo.CountByOrderIDAndStatus(ctx, s.db, order.ID, paymentdomain.PaymentStatusRefunded)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s-%s-%d", purpose, order.ID, previous)
	if amount != nil {
		key = fmt.Sprintf("%s-%s-%d-%d", purpose, order.ID, *amount, previous)
	}

	refund, err := s.gateway.CreateRefund(ctx, paymentdomain.RefundInput{
		PaymentIntentID: payment.ExternalID,
		Amount:          amount,
		IdempotencyKey:  key,
	})
	s.metrics.RecordGatewayCall(ctx, s.gateway.Provider(), "create_refund", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefundFailed, err)
	}
	if refund == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefundFailed, paymentdomain.ErrInvalidResponse)
	}

	refunded := refund.Amount
	if refunded <= 0 {
		refunded = payment.AmountCents
		if amount != nil {
			refunded = *amount
		}
		refund.Amount = refunded
	}
	externalID := strings.TrimSpace(refund.ID)
	if externalID == "" {
		externalID = key
	}

	now := s.clock.Now()
	created, err := s.paymentRepo.CreateRefunded(ctx, s.db, &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		OrderID:     order.ID,
		Provider:    s.gateway.Provider(),
		ExternalID:  externalID,
		AmountCents: refunded,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.RecordPaymentRecord(ctx, s.gateway.Provider(), string(paymentdomain.PaymentStatusRefunded))
	}
	return refund, nil
}

// refundableCents is the subtotal less every refund already recorded.
func (s *Service) refundableCents(ctx context.Context, order *domain.Order) (int64, error) {
	payments, err := s.paymentRepo.ListByOrderIDs(ctx, s.db, []snowflake.ID{order.ID})
	if err != nil {
		return 0, err
	}
	remaining := order.SubtotalCents
	for _, payment := range payments {
		if payment.Status == paymentdomain.PaymentStatusRefunded {
			remaining -= payment.AmountCents
		}
	}
	return max(remaining, 0), nil
}

// lostUpdate explains a failed compare-and-swap on an admin transition.
func (s *Service) lostUpdate(ctx context.Context, order *domain.Order) error {
	current, err := s.reload(ctx, order.ID)
	if err != nil {
		return err
	}
	if current.Status == domain.OrderStatusCancelled || current.Status == domain.OrderStatusRefunded {
		return domain.ErrAlreadyTerminal
	}
	return domain.ErrConcurrentUpdate
}

// findForAdmin accepts the internal id or the order number.
func (s *Service) findForAdmin(ctx context.Context, ref string) (*domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidOrderID
	}
	if id, err := snowflake.ParseString(ref); err == nil && id > 0 {
		order, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	return s.findByNumber(ctx, ref)
}

func (s *Service) adminView(ctx context.Context, order *domain.Order) (*domain.AdminOrder, error) {
	views, err := s.adminViews(ctx, []domain.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) adminViews(ctx context.Context, orders []domain.Order) ([]domain.AdminOrder, error) {
	if len(orders) == 0 {
		return []domain.AdminOrder{}, nil
	}

	ids := make([]snowflake.ID, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}

	items, err := s.repo.ListItemsByOrderIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByOrderIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	itemsByOrder := make(map[snowflake.ID][]domain.AdminOrderItem, len(orders))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], domain.AdminOrderItem{
			ProductID:      item.ProductID.String(),
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	paymentsByOrder := make(map[snowflake.ID][]domain.AdminPayment, len(orders))
	for _, payment := range payments {
		paymentsByOrder[payment.OrderID] = append(paymentsByOrder[payment.OrderID], domain.AdminPayment{
			ID:          payment.ID.String(),
			Provider:    payment.Provider,
			ExternalID:  payment.ExternalID,
			Status:      payment.Status.Public(),
			AmountCents: payment.AmountCents,
			CreatedAt:   payment.CreatedAt,
		})
	}

	views := make([]domain.AdminOrder, 0, len(orders))
	for _, order := range orders {
		view := domain.AdminOrder{
			ID:                order.ID.String(),
			OrderNumber:       order.OrderNumber,
			Status:            order.Status.Public(),
			SubtotalCents:     order.SubtotalCents,
			Currency:          order.Currency,
			CustomerEmail:     order.CustomerEmail,
			CustomerPhone:     order.CustomerPhone,
			Items:             itemsByOrder[order.ID],
			Payments:          paymentsByOrder[order.ID],
			RefundAmountCents: order.RefundAmountCents,
			RefundedAt:        order.RefundedAt,
			CancelledAt:       order.CancelledAt,
			CreatedAt:         order.CreatedAt,
		}
		if view.Items == nil {
			view.Items = []domain.AdminOrderItem{}
		}
		if view.Payments == nil {
			view.Payments = []domain.AdminPayment{}
		}
		views = append(views, view)
	}
	return views, nil
}
