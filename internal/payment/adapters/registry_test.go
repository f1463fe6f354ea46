package adapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/payment/adapters"
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryResolvesProviders(t *testing.T) {
	registry := adapters.NewRegistry(stripe.NewFactory(), nil)

	assert.True(t, registry.ProviderExists(" Stripe "))
	assert.False(t, registry.ProviderExists("adyen"))

	_, err := registry.NewGateway("adyen", domain.GatewayConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	var nilRegistry *adapters.Registry
	_, err = nilRegistry.NewGateway("stripe", domain.GatewayConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestProvideGatewayToleratesMissingSecrets(t *testing.T) {
	cfg := config.Config{Payment: config.PaymentConfig{Provider: "stripe"}}
	policy := config.StaticOrderPolicy(config.DefaultOrderPolicy())

	gateway, err := adapters.ProvideGateway(cfg, policy, clock.NewFakeClock(time.Now()), adapters.NewRegistry(stripe.NewFactory()), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, gateway.Provider())

	_, err = gateway.CreateCheckoutSession(context.Background(), domain.CheckoutSessionInput{})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = gateway.VerifyAndParseWebhook(context.Background(), []byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestProvideGatewayRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{Payment: config.PaymentConfig{Provider: "paypal"}}
	_, err := adapters.ProvideGateway(cfg, config.StaticOrderPolicy(config.DefaultOrderPolicy()), clock.New(), adapters.NewRegistry(stripe.NewFactory()), zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}
