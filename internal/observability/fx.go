package observability

import (
	"github.com/smallbiznis/noisesurvey/internal/observability/logger"
	"github.com/smallbiznis/noisesurvey/internal/observability/metrics"
	"github.com/smallbiznis/noisesurvey/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the logger, the tracer provider and the survey metrics,
// all configured from config.Config.
var Module = fx.Module("observability",
	fx.Provide(
		ConfigFrom,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
	),
	fx.Provide(
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// the tracer provider installs itself globally, so nothing else asks for it
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
