package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", OutcomeSaved),
		attribute.String("location", "Main Street"),
		attribute.String("reason", "validation_error"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "location" {
			t.Fatalf("expected location to be dropped")
		}
	}
}

func TestRecordSubmissionCountsByOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "noisesurvey"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSubmission(ctx, OutcomeSaved, "")
	m.RecordSubmission(ctx, OutcomeSaved, "")
	m.RecordSubmission(ctx, OutcomeRejected, "validation_error")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "noisesurvey_submissions_total" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				outcome, _ := point.Attributes.Value("outcome")
				counts[outcome.AsString()] += point.Value
			}
		}
	}
	assert.Equal(t, int64(2), counts[OutcomeSaved])
	assert.Equal(t, int64(1), counts[OutcomeRejected])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSubmission(context.Background(), OutcomeSaved, "")
	m.RecordListing(context.Background(), OutcomeServed, 3)
}

func TestNewProviderDisabledReturnsNoop(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)
	_, err = New(Config{}, provider)
	require.NoError(t, err)
}

func TestHTTPMetricsObservesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWithRegisterer(Config{ServiceName: "noisesurvey", Environment: "test"}, registry)
	require.NoError(t, err)

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/get_time", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/get_time", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("/get_time", http.MethodGet, "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("unmatched", http.MethodGet, "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := Config{ServiceName: "noisesurvey", Environment: "test"}

	first, err := NewHTTPMetricsWithRegisterer(cfg, registry)
	require.NoError(t, err)
	second, err := NewHTTPMetricsWithRegisterer(cfg, registry)
	require.NoError(t, err)

	assert.Same(t, first.requests, second.requests)
}
