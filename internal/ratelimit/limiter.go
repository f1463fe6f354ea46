package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scope names a rate limited endpoint family.
type Scope string

const (
	ScopeCheckout    Scope = "checkout"
	ScopeOrderStatus Scope = "order_status"
)

const keyPublicLimit = "storefront:ratelimit:%s:%s"

type limit struct {
	rate  float64
	burst int
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Client  *redis.Client       `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Limiter applies per-client token buckets to the public endpoints. Without
// Redis every request is allowed.
type Limiter struct {
	bucket   *TokenBucket
	limits   map[Scope]limit
	failOpen bool
	log      *zap.Logger
	metrics  *obsmetrics.Metrics
}

func NewLimiter(p Params) *Limiter {
	cfg := p.Config.RateLimit
	l := &Limiter{
		limits: map[Scope]limit{
			ScopeCheckout:    {rate: cfg.CheckoutRate, burst: cfg.CheckoutBurst},
			ScopeOrderStatus: {rate: cfg.StatusRate, burst: cfg.StatusBurst},
		},
		failOpen: cfg.FailOpenOnError,
		log:      p.Log.Named("ratelimit"),
		metrics:  p.Metrics,
	}
	if cfg.Enabled && p.Client != nil {
		l.bucket = NewTokenBucket(p.Client)
	}
	return l
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow takes one token from the bucket of clientKey within scope. Redis
// failures allow the request when the limiter fails open.
func (l *Limiter) Allow(ctx context.Context, scope Scope, clientKey string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	lim, ok := l.limits[scope]
	if !ok || lim.rate <= 0 || lim.burst <= 0 {
		return &Result{Allowed: true}, nil
	}

	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPublicLimit, scope, clientKey), lim.rate, lim.burst)
	if err != nil {
		logger.WithContext(ctx, l.log).Warn("rate limit check failed",
			zap.String("scope", string(scope)),
			zap.Bool("fail_open", l.failOpen),
			zap.Error(err),
		)
		if l.failOpen {
			return &Result{Allowed: true, Limit: lim.burst}, nil
		}
		l.metrics.RecordRateLimitDenied(ctx, string(scope), "error")
		return &Result{Allowed: false, Limit: lim.burst}, err
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, string(scope), "exhausted")
	}
	return res, nil
}
