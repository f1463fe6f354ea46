package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	correlationIDKey
	actorKey
	clientKey
)

type actor struct {
	actorType string
	actorID   string
}

type client struct {
	ipAddress string
	userAgent string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithCorrelationID tags work that is not tied to an inbound request, such as
// webhook deliveries and sweep runs.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, strings.TrimSpace(correlationID))
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(correlationIDKey).(string)
	return value
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actor{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the actor type and id, or empty strings.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey).(actor)
	if !ok {
		return "", ""
	}
	return value.actorType, value.actorID
}

func WithClient(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey, client{
		ipAddress: strings.TrimSpace(ipAddress),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func ClientFromContext(ctx context.Context) (ipAddress string, userAgent string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(clientKey).(client)
	if !ok {
		return "", ""
	}
	return value.ipAddress, value.userAgent
}
