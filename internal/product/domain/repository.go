package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ids []snowflake.ID) ([]*Product, error)
	FindAll(ctx context.Context, db *gorm.DB, teamID snowflake.ID, filter ListRequest) ([]*Product, error)

	InsertRelease(ctx context.Context, db *gorm.DB, release *Release) error
	FindRelease(ctx context.Context, db *gorm.DB, teamID, productID, id snowflake.ID) (*Release, error)
	ListReleases(ctx context.Context, db *gorm.DB, teamID, productID snowflake.ID) ([]Release, error)
	ClearLatest(ctx context.Context, db *gorm.DB, teamID, productID snowflake.ID) error
	MarkLatest(ctx context.Context, db *gorm.DB, teamID, releaseID snowflake.ID) error
	LatestReleases(ctx context.Context, db *gorm.DB, teamID snowflake.ID, productIDs []snowflake.ID) (map[snowflake.ID]*Release, error)
}
