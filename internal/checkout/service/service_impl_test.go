package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/checkout/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	orderrepo "github.com/smallbiznis/storefront/internal/order/repository"
	orderservice "github.com/smallbiznis/storefront/internal/order/service"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/payment/gatewaytest"
	paymentrepo "github.com/smallbiznis/storefront/internal/payment/repository"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productrepo "github.com/smallbiznis/storefront/internal/product/repository"
	productservice "github.com/smallbiznis/storefront/internal/product/service"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db       *gorm.DB
	gateway  *gatewaytest.Fake
	orders   orderdomain.Service
	svc      domain.Service
	cookies  productdomain.Product
	brownies productdomain.Product
	soldOut  productdomain.Product
}

func newHarness(t *testing.T, policy config.OrderPolicy) *harness {
	t.Helper()

	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	gw := gatewaytest.New()
	source := config.StaticOrderPolicy(policy)

	products := productrepo.Provide()
	insert := func(slug, name string, price int64, available bool) productdomain.Product {
		p := productdomain.Product{
			ID:          node.Generate(),
			Slug:        slug,
			Name:        name,
			Description: name + " baked daily",
			PriceCents:  price,
			Category:    "treats",
			IsAvailable: available,
			CreatedAt:   clk.Now(),
			UpdatedAt:   clk.Now(),
		}
		ok, err := products.InsertIfMissing(context.Background(), db, &p)
		require.NoError(t, err)
		require.True(t, ok)
		return p
	}

	h := &harness{db: db, gateway: gw}
	h.cookies = insert("chocolate-chip-cookies", "Chocolate Chip Cookies", 450, true)
	h.brownies = insert("fudgy-brownie-squares", "Fudgy Brownie Squares", 500, true)
	h.soldOut = insert("lemon-tart", "Lemon Tart", 600, false)

	h.orders = orderservice.New(orderservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        orderrepo.Provide(),
		PaymentRepo: paymentrepo.Provide(),
		Gateway:     gw,
		Policy:      source,
	})
	h.svc = service.New(service.Params{
		Log: zap.NewNop(),
		ProductSvc: productservice.New(productservice.Params{
			DB:   db,
			Log:  zap.NewNop(),
			Repo: products,
		}),
		OrderSvc: h.orders,
		Gateway:  gw,
		Policy:   source,
	})
	return h
}

func (h *harness) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&orderdomain.Order{}).Count(&n).Error)
	return n
}

func strPtr(v string) *string { return &v }

func validRequest(h *harness) domain.CreateSessionRequest {
	return domain.CreateSessionRequest{
		Items: []domain.CartItem{
			{ProductID: h.cookies.ID.String(), Quantity: 2},
			{ProductID: h.brownies.ID.String(), Quantity: 1},
		},
		CustomerEmail: strPtr("alice@example.com"),
		CustomerPhone: strPtr("+1 555 0100"),
		Origin:        "https://bakery.example.com/",
	}
}

func TestCreateSessionPersistsPendingOrder(t *testing.T) {
	h := newHarness(t, config.DefaultOrderPolicy())
	ctx := context.Background()

	resp, err := h.svc.CreateSession(ctx, validRequest(h))
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.Equal(t, "https://checkout.example.test/c/1", resp.CheckoutURL)

	order, err := h.orders.Get(ctx, resp.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, int64(1400), order.SubtotalCents)
	var stored orderdomain.Order
	require.NoError(t, h.db.Where("order_number = ?", resp.OrderNumber).First(&stored).Error)
	require.NotNil(t, stored.GatewaySessionID)
	assert.Equal(t, "cs_test_1", *stored.GatewaySessionID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Chocolate Chip Cookies", order.Items[0].ProductName)
	assert.Equal(t, int64(450), order.Items[0].UnitPriceCents)

	require.Len(t, h.gateway.CreatedInputs, 1)
	input := h.gateway.CreatedInputs[0]
	assert.Equal(t, "usd", input.Currency)
	assert.Equal(t, "alice@example.com", input.CustomerEmail)
	assert.Equal(t, resp.OrderNumber, input.Metadata[paymentdomain.MetadataOrderNumber])
	assert.Equal(t, "https://bakery.example.com/order/"+resp.OrderNumber, input.SuccessURL)
	assert.Equal(t, "https://bakery.example.com", input.CancelURL)
	require.Len(t, input.LineItems, 2)
	assert.Equal(t, int64(2), input.LineItems[0].Quantity)
}

func TestCreateSessionUsesConfiguredURLs(t *testing.T) {
	policy := config.DefaultOrderPolicy()
	policy.SuccessURLTemplate = "https://shop.example.com/thanks?order={ORDER_NUMBER}"
	policy.CancelURL = "https://shop.example.com/cart"
	h := newHarness(t, policy)

	resp, err := h.svc.CreateSession(context.Background(), validRequest(h))
	require.NoError(t, err)

	input := h.gateway.CreatedInputs[0]
	assert.Equal(t, "https://shop.example.com/thanks?order="+resp.OrderNumber, input.SuccessURL)
	assert.Equal(t, "https://shop.example.com/cart", input.CancelURL)
}

func TestCreateSessionRejectsCart(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(h *harness, req *domain.CreateSessionRequest)
		want   error
	}{
		{
			name:   "empty cart",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) { req.Items = nil },
			want:   domain.ErrEmptyCart,
		},
		{
			name:   "fractional quantity",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) { req.Items[0].Quantity = 1.5 },
			want:   domain.ErrInvalidQuantity,
		},
		{
			name:   "zero quantity",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) { req.Items[1].Quantity = 0 },
			want:   domain.ErrInvalidQuantity,
		},
		{
			name: "unknown product",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) {
				req.Items[1].ProductID = "987654321"
			},
			want: domain.ErrInvalidCartItems,
		},
		{
			name: "malformed product id",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) {
				req.Items[0].ProductID = "cookies"
			},
			want: domain.ErrInvalidCartItems,
		},
		{
			name: "unavailable product",
			mutate: func(h *harness, req *domain.CreateSessionRequest) {
				req.Items[1].ProductID = h.soldOut.ID.String()
			},
			want: domain.ErrInvalidCartItems,
		},
		{
			name: "bad email",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) {
				req.CustomerEmail = strPtr("not-an-email")
			},
			want: domain.ErrInvalidPayload,
		},
		{
			name: "missing phone",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) {
				req.CustomerPhone = strPtr("   ")
			},
			want: domain.ErrInvalidPayload,
		},
		{
			name: "phone too long",
			mutate: func(_ *harness, req *domain.CreateSessionRequest) {
				req.CustomerPhone = strPtr("+1 555 0100 0100 0100 0100 0100 0100")
			},
			want: domain.ErrInvalidPayload,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, config.DefaultOrderPolicy())
			req := validRequest(h)
			tc.mutate(h, &req)

			_, err := h.svc.CreateSession(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, h.countOrders(t))
			assert.Empty(t, h.gateway.CreatedInputs)
		})
	}
}

func TestCreateSessionReportsField(t *testing.T) {
	h := newHarness(t, config.DefaultOrderPolicy())
	req := validRequest(h)
	req.CustomerEmail = strPtr("bad@")

	_, err := h.svc.CreateSession(context.Background(), req)
	var fieldErr *domain.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "customerEmail", fieldErr.Field)
}

func TestCreateSessionPhoneOptional(t *testing.T) {
	policy := config.DefaultOrderPolicy()
	policy.RequirePhone = false
	h := newHarness(t, policy)
	req := validRequest(h)
	req.CustomerPhone = nil
	req.CustomerEmail = nil

	_, err := h.svc.CreateSession(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.countOrders(t))
}

func TestCreateSessionGatewayFailureLeavesPendingOrder(t *testing.T) {
	h := newHarness(t, config.DefaultOrderPolicy())
	h.gateway.CreateErr = &paymentdomain.GatewayError{
		Provider:   paymentdomain.ProviderStripe,
		Operation:  "create_checkout_session",
		StatusCode: 500,
		Message:    "upstream down",
	}

	_, err := h.svc.CreateSession(context.Background(), validRequest(h))
	assert.ErrorIs(t, err, domain.ErrCheckoutFailed)
	assert.ErrorIs(t, err, paymentdomain.ErrGatewayUnavailable)

	var order orderdomain.Order
	require.NoError(t, h.db.First(&order).Error)
	assert.Equal(t, orderdomain.OrderStatusPending, order.Status)
	assert.Nil(t, order.GatewaySessionID)
}
