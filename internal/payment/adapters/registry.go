package adapters

import (
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

type Registry struct {
	factories map[string]domain.GatewayFactory
}

func NewRegistry(factories ...domain.GatewayFactory) *Registry {
	registry := &Registry{factories: map[string]domain.GatewayFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(factory.Provider()))
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	_, ok := r.factories[provider]
	return ok
}

func (r *Registry) NewGateway(provider string, cfg domain.GatewayConfig) (domain.Gateway, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewGateway(cfg)
}

// ProvideGateway builds the one gateway the process talks to. Missing keys
// are tolerated here and surface as not-configured errors on use.
func ProvideGateway(
	cfg config.Config,
	policy config.OrderPolicySource,
	clk clock.Clock,
	registry *Registry,
	log *zap.Logger,
) (domain.Gateway, error) {
	provider := cfg.Payment.Provider
	if strings.TrimSpace(provider) == "" {
		provider = domain.ProviderStripe
	}

	gateway, err := registry.NewGateway(provider, domain.GatewayConfig{
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
		APIBase:       cfg.Payment.APIBase,
		Timeout:       cfg.Payment.Timeout,
		Clock:         clk,
		WebhookTolerance: func() time.Duration {
			return policy.Get().WebhookTolerance
		},
	})
	if err != nil {
		return nil, err
	}

	log = log.Named("payment.gateway").With(zap.String("provider", gateway.Provider()))
	if strings.TrimSpace(cfg.Payment.SecretKey) == "" {
		log.Warn("payment secret key not set; checkout and refunds will fail")
	}
	if strings.TrimSpace(cfg.Payment.WebhookSecret) == "" {
		log.Warn("webhook secret not set; webhook deliveries will be rejected")
	}
	return gateway, nil
}
