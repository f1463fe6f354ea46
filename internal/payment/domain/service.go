package domain

import "context"

// WebhookService verifies and applies gateway webhook deliveries.
type WebhookService interface {
	// HandleWebhook returns the applied event. Deliveries the storefront
	// does not act on succeed without side effects.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (Event, error)
}
