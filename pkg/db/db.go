package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/noisesurvey/internal/config"
	"github.com/smallbiznis/noisesurvey/internal/observability"
	"github.com/smallbiznis/noisesurvey/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(ConfigFrom),
	fx.Provide(New),
)

// Params wires the database into the fx graph.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	ObsConfig observability.Config
	Log       *zap.Logger
}

// New opens the database and closes the pool when the app stops.
func New(p Params) (*gorm.DB, error) {
	conn, err := Open(p.Config, p.Log, p.ObsConfig.Debug())
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			p.Log.Info("closing database", zap.String("type", p.Config.Type))
			return sqlDB.Close()
		},
	})
	return conn, nil
}

// Open connects to the configured backend, applies pool settings and installs
// the tracing and pool statistics plugins.
func Open(cfg Config, log *zap.Logger, debug bool) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, logger.DefaultGormLoggerConfig(debug)),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Type == config.DBTypeSQLite {
		// one writer at a time keeps sqlite from returning SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxIdleConn > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
		}
		if cfg.MaxOpenConn > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(dbName(cfg)),
		otelgorm.WithoutQueryVariables(),
		otelgorm.WithoutMetrics(),
	)); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}

	if cfg.MetricsEnabled {
		if err := conn.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          dbName(cfg),
			RefreshInterval: 15,
			StartServer:     false,
		})); err != nil {
			return nil, fmt.Errorf("install metrics plugin: %w", err)
		}
	}

	log.Info("database connected", zap.String("type", cfg.Type))
	return conn, nil
}

func dbName(cfg Config) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return "noisesurvey"
}
