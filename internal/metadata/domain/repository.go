package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Replace(ctx context.Context, db *gorm.DB, rows []Row, teamID snowflake.ID, ownerType OwnerType, ownerID snowflake.ID) error
	ListByOwners(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ownerType OwnerType, ownerIDs []snowflake.ID) (map[snowflake.ID][]Entry, error)
	DeleteByOwner(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ownerType OwnerType, ownerID snowflake.ID) error
}
