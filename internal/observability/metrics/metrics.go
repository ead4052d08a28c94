package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

const (
	OutcomeSaved    = "saved"
	OutcomeRejected = "rejected"
	OutcomeServed   = "served"
	OutcomeFailed   = "failed"
)

// Metrics exposes the survey instruments.
type Metrics struct {
	submissions metric.Int64Counter
	listings    metric.Int64Counter
	listedRows  metric.Int64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the survey instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "noisesurvey"
	}
	meter := provider.Meter(name)

	submissions, err := meter.Int64Counter("noisesurvey_submissions_total",
		metric.WithDescription("Survey submissions by outcome."))
	if err != nil {
		return nil, err
	}
	listings, err := meter.Int64Counter("noisesurvey_listings_total",
		metric.WithDescription("Dashboard listings by outcome."))
	if err != nil {
		return nil, err
	}
	listedRows, err := meter.Int64Histogram("noisesurvey_listing_rows",
		metric.WithDescription("Rows returned per dashboard listing."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		submissions: submissions,
		listings:    listings,
		listedRows:  listedRows,
	}, nil
}

// RecordSubmission counts one submission. reason is the error kind for
// rejected and failed submissions and empty otherwise.
func (m *Metrics) RecordSubmission(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if reason = strings.TrimSpace(reason); reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

// RecordListing counts one listing and the number of rows it returned.
func (m *Metrics) RecordListing(ctx context.Context, outcome string, rows int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", outcome))
	m.listings.Add(ctx, 1, metric.WithAttributes(attrs...))
	if outcome == OutcomeServed {
		m.listedRows.Record(ctx, int64(rows))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"reason":      {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
