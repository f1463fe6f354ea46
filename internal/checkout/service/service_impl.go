package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxPhoneLength = 32

type Params struct {
	fx.In

	Log        *zap.Logger
	ProductSvc productdomain.Service
	OrderSvc   orderdomain.Service
	Gateway    paymentdomain.Gateway
	Policy     config.OrderPolicySource
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	productSvc productdomain.Service
	orderSvc   orderdomain.Service
	gateway    paymentdomain.Gateway
	policy     config.OrderPolicySource
	metrics    *obsmetrics.Metrics
	validate   *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		productSvc: p.ProductSvc,
		orderSvc:   p.OrderSvc,
		gateway:    p.Gateway,
		policy:     p.Policy,
		metrics:    p.Metrics,
		validate:   validator.New(),
	}
}

type cartLine struct {
	productID snowflake.ID
	quantity  int64
}

func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.CreateSessionResponse, error) {
	policy := s.policy.Get()

	lines, err := s.validateRequest(req, policy)
	if err != nil {
		return nil, err
	}

	products, err := s.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	pending := make([]orderdomain.PendingItem, 0, len(lines))
	lineItems := make([]paymentdomain.LineItem, 0, len(lines))
	for _, line := range lines {
		product := products[line.productID]
		pending = append(pending, orderdomain.PendingItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.quantity,
			UnitPriceCents: product.PriceCents,
		})
		lineItems = append(lineItems, paymentdomain.LineItem{
			Name:        product.Name,
			Description: product.Description,
			UnitAmount:  product.PriceCents,
			Quantity:    line.quantity,
		})
	}

	order, err := s.orderSvc.CreatePending(ctx, orderdomain.CreatePendingRequest{
		Items:         pending,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx, s.log).With(zap.String("order_number", order.OrderNumber))

	origin := strings.TrimRight(strings.TrimSpace(req.Origin), "/")
	email := ""
	if order.CustomerEmail != nil {
		email = *order.CustomerEmail
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionInput{
		LineItems:     lineItems,
		Currency:      order.Currency,
		CustomerEmail: email,
		SuccessURL:    successURL(policy.SuccessURLTemplate, order.OrderNumber, origin),
		CancelURL:     cancelURL(policy.CancelURL, origin),
		Metadata:      map[string]string{paymentdomain.MetadataOrderNumber: order.OrderNumber},
	})
	s.metrics.RecordGatewayCall(ctx, s.gateway.Provider(), "create_checkout_session", err)
	if err != nil {
		log.Error("checkout session creation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckoutFailed, err)
	}

	if err := s.orderSvc.AttachSession(ctx, order.ID, session.ID); err != nil {
		log.Error("attach checkout session failed", zap.String("session_id", session.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckoutFailed, err)
	}

	if strings.TrimSpace(session.URL) == "" {
		log.Error("checkout session has no redirect url", zap.String("session_id", session.ID))
		return nil, domain.ErrCheckoutFailed
	}

	log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.Int64("subtotal_cents", order.SubtotalCents),
	)
	return &domain.CreateSessionResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

func (s *Service) validateRequest(req domain.CreateSessionRequest, policy config.OrderPolicy) ([]cartLine, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	if req.CustomerEmail != nil {
		email := strings.TrimSpace(*req.CustomerEmail)
		if email != "" && s.validate.Var(email, "email") != nil {
			return nil, &domain.FieldError{Field: "customerEmail", Err: domain.ErrInvalidPayload}
		}
	}

	phone := ""
	if req.CustomerPhone != nil {
		phone = strings.TrimSpace(*req.CustomerPhone)
	}
	if policy.RequirePhone && phone == "" {
		return nil, &domain.FieldError{Field: "customerPhone", Err: domain.ErrInvalidPayload}
	}
	if len(phone) > maxPhoneLength {
		return nil, &domain.FieldError{Field: "customerPhone", Err: domain.ErrInvalidPayload}
	}

	lines := make([]cartLine, 0, len(req.Items))
	for _, item := range req.Items {
		q := item.Quantity
		if q < 1 || q != math.Trunc(q) || q > math.MaxInt32 {
			return nil, domain.ErrInvalidQuantity
		}
		id, err := snowflake.ParseString(strings.TrimSpace(item.ProductID))
		if err != nil || id <= 0 {
			return nil, domain.ErrInvalidCartItems
		}
		lines = append(lines, cartLine{productID: id, quantity: int64(q)})
	}
	return lines, nil
}

// resolveProducts loads every distinct product once. A single missing or
// unavailable product rejects the whole cart.
func (s *Service) resolveProducts(ctx context.Context, lines []cartLine) (map[snowflake.ID]productdomain.Product, error) {
	seen := make(map[snowflake.ID]struct{}, len(lines))
	ids := make([]snowflake.ID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.productID]; ok {
			continue
		}
		seen[line.productID] = struct{}{}
		ids = append(ids, line.productID)
	}

	products, err := s.productSvc.FindAvailable(ctx, ids)
	if err != nil {
		if errors.Is(err, productdomain.ErrNotFound) {
			return nil, domain.ErrInvalidCartItems
		}
		return nil, err
	}

	byID := make(map[snowflake.ID]productdomain.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, domain.ErrInvalidCartItems
		}
	}
	return byID, nil
}
