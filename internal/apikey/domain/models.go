package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// APIKey stores hashed API credentials scoped to a team.
type APIKey struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	TeamID     snowflake.ID   `gorm:"column:team_id;not null;uniqueIndex:ux_api_keys_team_key_id,priority:1"`
	KeyID      string         `gorm:"column:key_id;type:text;not null;uniqueIndex:ux_api_keys_team_key_id,priority:2"`
	Name       string         `gorm:"type:text;not null"`
	Scopes     pq.StringArray `gorm:"type:text[];not null"`
	KeyHash    string         `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	IsActive   bool           `gorm:"column:is_active;not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at"`
	RevokedAt  *time.Time     `gorm:"column:revoked_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// HasScope reports whether the key grants scope.
func (k APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByKeyID(ctx context.Context, db *gorm.DB, teamID snowflake.ID, keyID string) (*APIKey, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]APIKey, error)
	Revoke(ctx context.Context, db *gorm.DB, teamID snowflake.ID, keyID string, now time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
}
