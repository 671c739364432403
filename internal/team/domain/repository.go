package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=mock/mock_repository.go -package=mock_domain

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, team *Team) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Team, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Team, error)
}
