package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/config"
	"github.com/smallbiznis/licensehub/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies the embedded schema and seeds the main team before the
// HTTP server starts.
var Module = fx.Module("migrations", fx.Invoke(migrateAndSeed))

func migrateAndSeed(conn *gorm.DB, node *snowflake.Node, cfg config.Config, log *zap.Logger) error {
	// embedded SQL is postgres only; sqlite and mysql deployments bring their own schema
	if dialect := conn.Dialector.Name(); dialect != "postgres" {
		log.Warn("skipping migrations", zap.String("dialect", dialect))
	} else {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB, log); err != nil {
			return err
		}
	}

	team, err := seed.MainTeam(context.Background(), conn, node, snowflake.ID(cfg.DefaultTeamID))
	if err != nil {
		return err
	}
	log.Info("main team ready", zap.String("team_id", team.ID.String()))
	return nil
}
