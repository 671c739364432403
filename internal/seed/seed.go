// Package seed creates the default team a fresh install needs before the
// dashboard can sign anyone in.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	teamdomain "github.com/smallbiznis/licensehub/internal/team/domain"
	"gorm.io/gorm"
)

const (
	MainTeamName = "Main"
	MainTeamSlug = "main"
)

// MainTeam returns the team with slug "main", creating it when absent. A
// non-zero fixedID pins the id of a newly created team and short-circuits
// when a team with that id already exists. Otherwise ids come from node.
func MainTeam(ctx context.Context, db *gorm.DB, node *snowflake.Node, fixedID snowflake.ID) (*teamdomain.Team, error) {
	if db == nil {
		return nil, errors.New("seed: database handle is required")
	}
	if fixedID == 0 && node == nil {
		return nil, errors.New("seed: id generator or fixed team id is required")
	}

	var team teamdomain.Team
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if fixedID != 0 {
			err := tx.Where("id = ?", fixedID).Take(&team).Error
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		id := fixedID
		if id == 0 {
			id = node.Generate()
		}
		now := time.Now().UTC()
		return tx.
			Where(teamdomain.Team{Slug: MainTeamSlug}).
			Attrs(teamdomain.Team{ID: id, Name: MainTeamName, CreatedAt: now, UpdatedAt: now}).
			FirstOrCreate(&team).Error
	})
	if err != nil {
		return nil, err
	}
	return &team, nil
}
