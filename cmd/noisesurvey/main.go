package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/noisesurvey/internal/clock"
	"github.com/smallbiznis/noisesurvey/internal/config"
	"github.com/smallbiznis/noisesurvey/internal/migration"
	"github.com/smallbiznis/noisesurvey/internal/observability"
	"github.com/smallbiznis/noisesurvey/internal/observation"
	"github.com/smallbiznis/noisesurvey/internal/server"
	"github.com/smallbiznis/noisesurvey/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	fx.New(options()...).Run()
}

func options() []fx.Option {
	return []fx.Option{
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		observation.Module,
		server.Module,
	}
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
