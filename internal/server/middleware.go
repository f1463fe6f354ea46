package server

import (
	"crypto/subtle"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	HeaderAdminToken = "X-Admin-Token"

	adminActorType = "admin"
	adminActorID   = "api_token"
)

// AdminAuthRequired checks the shared admin token sent as X-Admin-Token or as
// a bearer token.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := s.cfg.Admin.APIToken
		if configured == "" {
			AbortWithError(c, ErrAdminNotConfigured)
			return
		}

		token := adminToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(configured)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), adminActorType, adminActorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func adminToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(HeaderAdminToken)); token != "" {
		return token
	}

	scheme, value, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// RateLimit applies the per-client bucket of scope, keyed by client IP.
func (s *Server) RateLimit(scope ratelimit.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.Allow(ctx, scope, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit unavailable",
				zap.String("scope", string(scope)),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
