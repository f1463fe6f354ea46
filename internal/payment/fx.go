package payment

import (
	"github.com/smallbiznis/storefront/internal/payment/adapters"
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	"github.com/smallbiznis/storefront/internal/payment/repository"
	"github.com/smallbiznis/storefront/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(adapters.ProvideGateway),
	fx.Provide(webhook.NewService),
)
