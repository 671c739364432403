package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Get returns nil when the team never configured a policy.
	Get(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*Policy, error)
	Upsert(ctx context.Context, db *gorm.DB, policy *Policy) error
}
