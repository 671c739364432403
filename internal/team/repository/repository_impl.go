package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/team/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, team *domain.Team) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO teams (id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		team.ID,
		team.Name,
		team.Slug,
		team.CreatedAt,
		team.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, created_at, updated_at FROM teams WHERE id = ?`,
		id,
	).Scan(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == 0 {
		return nil, nil
	}
	return &team, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Team, error) {
	var team domain.Team
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, created_at, updated_at FROM teams WHERE slug = ?`,
		slug,
	).Scan(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == 0 {
		return nil, nil
	}
	return &team, nil
}
