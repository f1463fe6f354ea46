package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/order/ordernumber"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	Gateway     paymentdomain.Gateway
	Policy      config.OrderPolicySource

	Audit        auditdomain.Service   `optional:"true"`
	Metrics      *obsmetrics.Metrics   `optional:"true"`
	OrderNumbers ordernumber.Generator `optional:"true"`
}

// Service owns every order status write. Webhooks, the public status pull,
// the pending sweep and admin actions all go through it.
type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	paymentRepo  paymentdomain.Repository
	gateway      paymentdomain.Gateway
	policy       config.OrderPolicySource
	audit        auditdomain.Service
	metrics      *obsmetrics.Metrics
	orderNumbers ordernumber.Generator
}

func New(p Params) domain.Service {
	orderNumbers := p.OrderNumbers
	if orderNumbers == nil {
		orderNumbers = ordernumber.New
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("order.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		paymentRepo:  p.PaymentRepo,
		gateway:      p.Gateway,
		policy:       p.Policy,
		audit:        p.Audit,
		metrics:      p.Metrics,
		orderNumbers: orderNumbers,
	}
}

func (s *Service) CreatePending(ctx context.Context, req domain.CreatePendingRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	policy := s.policy.Get()
	now := s.clock.Now()
	order := &domain.Order{
		ID:            s.genID.Generate(),
		OrderNumber:   s.orderNumbers(policy.OrderNumberPrefix, now),
		Status:        domain.OrderStatusPending,
		Currency:      policy.Currency,
		CustomerEmail: normalizePointer(req.CustomerEmail),
		CustomerPhone: normalizePointer(req.CustomerPhone),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		if item.UnitPriceCents < 0 {
			return nil, domain.ErrInvalidUnitPrice
		}
		items = append(items, domain.OrderItem{
			ID:             s.genID.Generate(),
			OrderID:        order.ID,
			Position:       i,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			CreatedAt:      now,
		})
	}
	order.SubtotalCents = domain.Subtotal(items)

	if err := s.repo.CreatePending(ctx, s.db, order, items); err != nil {
		return nil, err
	}

	s.metrics.RecordOrderTransition(ctx, "", string(domain.OrderStatusPending), string(domain.TriggerCheckout))
	s.log.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("subtotal_cents", order.SubtotalCents),
		zap.Int("items", len(items)),
	)
	return order, nil
}

func (s *Service) AttachSession(ctx context.Context, orderID snowflake.ID, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrMissingReference
	}

	ok, err := s.repo.AttachSession(ctx, s.db, orderID, sessionID, s.clock.Now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.GatewaySessionID != nil && *order.GatewaySessionID == sessionID {
		return nil
	}
	s.log.Warn("checkout session not attached",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)
	return domain.ErrConcurrentUpdate
}

func (s *Service) GetPublicStatus(ctx context.Context, orderNumber string) (*domain.PublicOrder, error) {
	order, err := s.Reconcile(ctx, orderNumber, domain.TriggerReconcile)
	if err != nil {
		return nil, err
	}
	return &domain.PublicOrder{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status.Public(),
		SubtotalCents: order.SubtotalCents,
		CreatedAt:     order.CreatedAt,
	}, nil
}

func (s *Service) findByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, domain.ErrInvalidOrderNumber
	}
	order, err := s.repo.FindByOrderNumber(ctx, s.db, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) provider() string {
	if s.gateway == nil {
		return paymentdomain.ProviderStripe
	}
	return s.gateway.Provider()
}

// writeAudit never fails the caller; a lost audit entry is logged.
func (s *Service) writeAudit(ctx context.Context, action string, order *domain.Order, metadata map[string]any) {
	if s.audit == nil || order == nil {
		return
	}
	targetID := order.ID.String()
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["order_number"] = order.OrderNumber
	if err := s.audit.AuditLog(ctx, "", nil, action, auditdomain.TargetTypeOrder, &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
