package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req checkoutdomain.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, checkoutdomain.ErrInvalidPayload)
		return
	}
	req.Origin = s.requestOrigin(c)

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("order_number", resp.OrderNumber)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// requestOrigin prefers the configured public URL over the request host.
func (s *Server) requestOrigin(c *gin.Context) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
