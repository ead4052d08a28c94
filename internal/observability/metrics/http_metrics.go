package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the prometheus request instruments served on /metrics.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewHTTPMetrics registers the request instruments on the default registerer.
func NewHTTPMetrics(cfg Config) (*HTTPMetrics, error) {
	return NewHTTPMetricsWithRegisterer(cfg, prometheus.DefaultRegisterer)
}

// NewHTTPMetricsWithRegisterer registers on registerer, reusing collectors
// that are already registered under the same description.
func NewHTTPMetricsWithRegisterer(cfg Config, registerer prometheus.Registerer) (*HTTPMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{
		"service": serviceLabel(cfg.ServiceName),
		"env":     strings.TrimSpace(cfg.Environment),
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "noisesurvey_http_requests_total",
		Help:        "HTTP requests by route, method and status code.",
		ConstLabels: constLabels,
	}, []string{"route", "method", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "noisesurvey_http_request_duration_seconds",
		Help:        "HTTP request latency by route and method.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"route", "method"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "noisesurvey_http_requests_in_flight",
		Help:        "HTTP requests currently being served.",
		ConstLabels: constLabels,
	})

	var err error
	if requests, err = register(registerer, requests); err != nil {
		return nil, err
	}
	if duration, err = register(registerer, duration); err != nil {
		return nil, err
	}
	if inflight, err = register(registerer, inflight); err != nil {
		return nil, err
	}

	return &HTTPMetrics{requests: requests, duration: duration, inflight: inflight}, nil
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

// GinMiddleware observes every request. Unmatched paths share one route label.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func serviceLabel(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "noisesurvey"
}
