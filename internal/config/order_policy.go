package config

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultPendingOrderExpiryMinutes = 24 * 60
	DefaultOrderNumberPrefix         = "MB"
	DefaultCurrency                  = "usd"
	DefaultReconcileTimeout          = 4 * time.Second
	DefaultWebhookTolerance          = 5 * time.Minute
)

// OrderPolicy holds the tunable rules of the order lifecycle. It can be
// changed at runtime through the watched orders config file.
type OrderPolicy struct {
	PendingExpiryMinutes float64       `mapstructure:"pendingExpiryMinutes"`
	SuccessURLTemplate   string        `mapstructure:"successUrlTemplate"`
	CancelURL            string        `mapstructure:"cancelUrl"`
	RequirePhone         bool          `mapstructure:"requirePhone"`
	OrderNumberPrefix    string        `mapstructure:"orderNumberPrefix"`
	Currency             string        `mapstructure:"currency"`
	ReconcileTimeout     time.Duration `mapstructure:"reconcileTimeout"`
	WebhookTolerance     time.Duration `mapstructure:"webhookTolerance"`
}

// PendingExpiry returns the pending window. Invalid or non-positive values
// fall back to the default; fractional minutes are rounded, minimum one.
func (p OrderPolicy) PendingExpiry() time.Duration {
	minutes := p.PendingExpiryMinutes
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		minutes = DefaultPendingOrderExpiryMinutes
	}
	rounded := math.Max(1, math.Round(minutes))
	return time.Duration(rounded) * time.Minute
}

func DefaultOrderPolicy() OrderPolicy {
	return OrderPolicy{
		PendingExpiryMinutes: DefaultPendingOrderExpiryMinutes,
		RequirePhone:         true,
		OrderNumberPrefix:    DefaultOrderNumberPrefix,
		Currency:             DefaultCurrency,
		ReconcileTimeout:     DefaultReconcileTimeout,
		WebhookTolerance:     DefaultWebhookTolerance,
	}
}

// OrderPolicySource exposes the current order policy.
type OrderPolicySource interface {
	Get() OrderPolicy
}

// StaticOrderPolicy serves a fixed policy.
type StaticOrderPolicy OrderPolicy

func (s StaticOrderPolicy) Get() OrderPolicy { return OrderPolicy(s) }

type OrderPolicyHolder struct {
	current atomic.Value // holds OrderPolicy
}

var policyEnvBindings = map[string]string{
	"orders.pendingExpiryMinutes": "PENDING_ORDER_EXPIRY_MINUTES",
	"orders.successUrlTemplate":   "STRIPE_SUCCESS_URL_TEMPLATE",
	"orders.cancelUrl":            "STRIPE_CANCEL_URL",
	"orders.requirePhone":         "CHECKOUT_REQUIRE_PHONE",
	"orders.orderNumberPrefix":    "ORDER_NUMBER_PREFIX",
	"orders.currency":             "CURRENCY",
	"orders.reconcileTimeout":     "RECONCILE_TIMEOUT",
	"orders.webhookTolerance":     "WEBHOOK_TOLERANCE",
}

func NewOrderPolicyHolder(log *zap.Logger) (*OrderPolicyHolder, error) {
	log = log.Named("config.orders")
	v := viper.New()

	v.SetConfigName("orders")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	defaults := DefaultOrderPolicy()
	v.SetDefault("orders.pendingExpiryMinutes", defaults.PendingExpiryMinutes)
	v.SetDefault("orders.successUrlTemplate", defaults.SuccessURLTemplate)
	v.SetDefault("orders.cancelUrl", defaults.CancelURL)
	v.SetDefault("orders.requirePhone", defaults.RequirePhone)
	v.SetDefault("orders.orderNumberPrefix", defaults.OrderNumberPrefix)
	v.SetDefault("orders.currency", defaults.Currency)
	v.SetDefault("orders.reconcileTimeout", defaults.ReconcileTimeout)
	v.SetDefault("orders.webhookTolerance", defaults.WebhookTolerance)
	for key, env := range policyEnvBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeOrderPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &OrderPolicyHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeOrderPolicy(v)
			if err != nil {
				log.Warn("order policy reload rejected", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("order policy reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *OrderPolicyHolder) Get() OrderPolicy {
	return h.current.Load().(OrderPolicy)
}

func decodeOrderPolicy(v *viper.Viper) (OrderPolicy, error) {
	var cfg OrderPolicy
	if err := v.UnmarshalKey("orders", &cfg); err != nil {
		return OrderPolicy{}, err
	}
	cfg = normalizeOrderPolicy(cfg)
	if err := validateOrderPolicy(cfg); err != nil {
		return OrderPolicy{}, err
	}
	return cfg, nil
}

func normalizeOrderPolicy(cfg OrderPolicy) OrderPolicy {
	cfg.SuccessURLTemplate = strings.TrimSpace(cfg.SuccessURLTemplate)
	cfg.CancelURL = strings.TrimSpace(cfg.CancelURL)
	cfg.OrderNumberPrefix = strings.ToUpper(strings.TrimSpace(cfg.OrderNumberPrefix))
	if cfg.OrderNumberPrefix == "" {
		cfg.OrderNumberPrefix = DefaultOrderNumberPrefix
	}
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.ReconcileTimeout <= 0 {
		cfg.ReconcileTimeout = DefaultReconcileTimeout
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = DefaultWebhookTolerance
	}
	return cfg
}

func validateOrderPolicy(cfg OrderPolicy) error {
	if len(cfg.Currency) != 3 {
		return errors.New("orders.currency must be a three letter ISO code")
	}
	if strings.ContainsAny(cfg.OrderNumberPrefix, " -") {
		return errors.New("orders.orderNumberPrefix cannot contain spaces or dashes")
	}
	return nil
}
