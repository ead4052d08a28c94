package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	DeployEnv   string

	HTTPAddr           string
	TimeZone           string
	CORSAllowedOrigins []string
	SnowflakeNode      int64
	SiteConfigPath     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	DBType            string
	DatabaseURL       string
	SQLitePath        string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMetricsEnabled  bool
}

const (
	DBTypePostgres = "postgres"
	DBTypeSQLite   = "sqlite"

	DeployEnvProduction = "production"
)

var ErrDatabaseURLRequired = errors.New("DATABASE_URL is required in production")

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	deployEnv := strings.ToLower(getenv("DEPLOY_ENV", getenv("VERCEL_ENV", "")))

	cfg := Config{
		AppName:              getenv("APP_SERVICE", "noisesurvey"),
		AppVersion:           getenv("APP_VERSION", "0.1.0"),
		Environment:          getenv("ENVIRONMENT", "development"),
		DeployEnv:            deployEnv,
		HTTPAddr:             httpAddr(),
		TimeZone:             getenv("TIME_ZONE", "Local"),
		CORSAllowedOrigins:   parseList(getenv("CORS_ALLOWED_ORIGINS", "")),
		SnowflakeNode:        getenvInt64("SNOWFLAKE_NODE", 1),
		SiteConfigPath:       getenv("SITE_CONFIG_PATH", "."),
		LogLevel:             strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:            strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
		OtelExporterProtocol: strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		DatabaseURL:          strings.TrimSpace(getenv("DATABASE_URL", "")),
		SQLitePath:           getenv("SQLITE_PATH", "noise_data.db"),
		DBMaxIdleConn:        int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:        int(getenvInt64("DATABASE_MAX_OPEN_CONN", 10)),
		DBConnMaxLifetime:    int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime:    int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		DBMetricsEnabled:     getenvBool("DATABASE_METRICS_ENABLED", true),
	}

	cfg.DBType = DBTypeSQLite
	if cfg.IsProduction() {
		cfg.DBType = DBTypePostgres
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the deployment flag selects the hosted backend.
func (c Config) IsProduction() bool {
	return c.DeployEnv == DeployEnvProduction
}

func (c Config) Validate() error {
	if c.DBType == DBTypePostgres && c.DatabaseURL == "" {
		return ErrDatabaseURLRequired
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return err
	}
	return nil
}

// Location returns the zone used for human facing clock output.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func httpAddr() string {
	if addr := strings.TrimSpace(os.Getenv("HTTP_ADDR")); addr != "" {
		return addr
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return ":8080"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
