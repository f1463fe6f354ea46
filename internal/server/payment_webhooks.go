package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	HeaderStripeSignature = "Stripe-Signature"

	maxWebhookBodyBytes = 1 << 20
)

// HandleStripeWebhook verifies the raw body against the signature header
// before anything is decoded.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader(HeaderStripeSignature)
	if signature == "" {
		AbortWithError(c, paymentdomain.ErrMissingSignature)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, paymentdomain.ErrInvalidPayload)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.webhookSvc.HandleWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if event != nil {
		meta := event.Meta()
		logger.FromContext(c.Request.Context()).Debug("webhook accepted",
			zap.String("event_id", meta.ID),
			zap.String("event_type", meta.Type),
		)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"received": true}})
}
