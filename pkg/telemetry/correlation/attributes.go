package correlation

import "go.opentelemetry.io/otel/attribute"

const correlationIDKey = attribute.Key("correlation_id")

func attributeCorrelationID(id string) attribute.KeyValue {
	return correlationIDKey.String(id)
}
