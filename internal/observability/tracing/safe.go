package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const maxAttributeLength = 256

// blockedKeys never leave the process as span attributes. Survey answers and
// coordinates are personal data.
var blockedKeys = map[attribute.Key]struct{}{
	"age":         {},
	"location":    {},
	"latitude":    {},
	"longitude":   {},
	"device_info": {},
	"http.body":   {},
}

// ExtractContext restores upstream trace context from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops blocked keys and truncates long string values.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedKeys[attr.Key]; blocked {
			continue
		}
		if attr.Value.Type() == attribute.STRING {
			if v := attr.Value.AsString(); len(v) > maxAttributeLength {
				attr = attribute.String(string(attr.Key), v[:maxAttributeLength])
			}
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error carrying only the first line of err's message.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > maxAttributeLength {
		msg = msg[:maxAttributeLength]
	}
	if msg == "" {
		msg = "error"
	}
	return errors.New(msg)
}
