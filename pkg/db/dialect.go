package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/noisesurvey/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialect resolves the gorm dialector for the configured backend.
func Dialect(cfg Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case config.DBTypePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, config.ErrDatabaseURLRequired
		}
		return postgres.New(postgres.Config{
			DSN:                  cfg.DatabaseURL,
			PreferSimpleProtocol: true,
		}), nil
	case config.DBTypeSQLite:
		return sqlite.Open(SQLiteDSN(cfg.SQLitePath)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

// SQLiteDSN builds a file DSN with a busy timeout and WAL journaling.
func SQLiteDSN(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "noise_data.db"
	}
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}
