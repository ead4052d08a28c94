package observability

import (
	"testing"

	"github.com/smallbiznis/noisesurvey/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestConfigFromUsesProcessConfigOnly(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "staging")
	t.Setenv("SERVICE_VERSION", "9.9.9")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http")

	cfg := ConfigFrom(config.Config{
		AppName:              "noisesurvey",
		AppVersion:           "0.1.0",
		Environment:          "production",
		LogLevel:             "warn",
		LogFormat:            "json",
		OtelEnabled:          true,
		OtelExporterEndpoint: "collector:4317",
		OtelExporterProtocol: "grpc",
		OtelSamplingRatio:    0.25,
	})

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "0.1.0", cfg.Version)
	assert.False(t, cfg.Debug())

	tr := cfg.Tracing()
	assert.True(t, tr.Enabled)
	assert.Equal(t, "grpc", tr.ExporterProtocol)
	assert.Equal(t, "collector:4317", tr.ExporterEndpoint)
	assert.Equal(t, 0.25, tr.SamplingRatio)

	assert.Equal(t, "collector:4317", cfg.Metrics().ExporterEndpoint)
	assert.Equal(t, "warn", cfg.Logger().Level)
}

func TestConfigFromDefaultsServiceName(t *testing.T) {
	cfg := ConfigFrom(config.Config{AppName: "  "})
	assert.Equal(t, "noisesurvey", cfg.ServiceName)
}

func TestDebug(t *testing.T) {
	cases := []struct {
		env, level string
		want       bool
	}{
		{"production", "info", false},
		{"production", "DEBUG", true},
		{"test", "info", true},
		{"local", "", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Config{Environment: tc.env, LogLevel: tc.level}.Debug(), tc.env+"/"+tc.level)
	}
}
