package tracing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/noisesurvey/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareConfig controls how request spans describe failures.
type MiddlewareConfig struct {
	// ErrorClassifier maps the last handler error to a type and code, the
	// same pair the request log carries.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware opens one server span per request, named after the matched
// route. Handler errors are tagged on the span; only 5xx marks it failed.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		lastErr := c.Errors.Last()
		if lastErr != nil && cfg.ErrorClassifier != nil {
			errType, errCode := cfg.ErrorClassifier(lastErr.Err)
			span.SetAttributes(
				attribute.String("survey.error_type", errType),
				attribute.String("survey.error_code", errCode),
			)
		}
		if status >= http.StatusInternalServerError {
			if lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
