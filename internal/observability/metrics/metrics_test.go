package metrics

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("to", "paid"),
		attribute.String("order_number", "MB-1"),
		attribute.String("customer_email", "a@b.c"),
		attribute.String("trigger", "webhook"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "order_number" || attr.Key == "customer_email" {
			t.Fatalf("unexpected high-cardinality label %s", attr.Key)
		}
	}
}

func TestNilMetricsRecordersAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordOrderTransition(ctx, "PENDING", "PAID", "webhook")
	m.RecordPaymentRecord(ctx, "stripe", "SUCCEEDED")
	m.RecordWebhookEvent(ctx, "stripe", "checkout.session.completed")
	m.RecordGatewayCall(ctx, "stripe", "create_refund", errors.New("boom"))
	m.RecordRateLimitDenied(ctx, "/api/checkout", "ip-rate")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "storefront"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordOrderTransition(context.Background(), "PAID", "REFUNDED", "admin_refund")
}
