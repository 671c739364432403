package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/config"
	"github.com/smallbiznis/licensehub/internal/migration"
	"github.com/smallbiznis/licensehub/internal/observability"
	"github.com/smallbiznis/licensehub/internal/observability/metricspush"
	"github.com/smallbiznis/licensehub/internal/server"
	"github.com/smallbiznis/licensehub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		metricspush.Module,

		fx.Invoke(func(s *server.Server) {
			s.RegisterAdminRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
