package db

import (
	"strings"
	"time"

	"github.com/smallbiznis/noisesurvey/internal/config"
)

// Config carries the settings needed to open the survey database.
type Config struct {
	Type            string
	DatabaseURL     string
	SQLitePath      string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MetricsEnabled  bool
	Name            string
}

// ConfigFrom derives the database settings from the process config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Type:            cfg.DBType,
		DatabaseURL:     cfg.DatabaseURL,
		SQLitePath:      cfg.SQLitePath,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
		MetricsEnabled:  cfg.DBMetricsEnabled && !isTestEnv(cfg.Environment),
		Name:            cfg.AppName,
	}
}

// isTestEnv reports environments that open many short lived pools. The pool
// statistics plugin runs a refresher that never stops, so it stays off there.
func isTestEnv(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "test")
}
