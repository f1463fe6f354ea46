package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
)

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	return obscontext.CorrelationIDFromContext(ctx)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating
// a ULID when missing. The id is also stamped on the active span.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
		ctx = obscontext.WithCorrelationID(ctx, cid)
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attributeCorrelationID(cid))
	}
	return ctx, cid
}
