package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*domain.Policy, error) {
	var policy domain.Policy
	err := db.WithContext(ctx).Raw(
		`SELECT team_id,
		        license_ip_limit, license_seats, license_expiration_type, license_expiration_start,
		        license_expiration_date, license_expiration_days, license_metadata_keys,
		        customer_email, customer_full_name, customer_username, customer_metadata_keys,
		        product_name, product_url, product_latest_release, product_metadata_keys,
		        created_at, updated_at
		 FROM returned_fields WHERE team_id = ?`,
		teamID,
	).Scan(&policy).Error
	if err != nil {
		return nil, err
	}
	if policy.TeamID == 0 {
		return nil, nil
	}
	return &policy, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, policy *domain.Policy) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"license_ip_limit",
				"license_seats",
				"license_expiration_type",
				"license_expiration_start",
				"license_expiration_date",
				"license_expiration_days",
				"license_metadata_keys",
				"customer_email",
				"customer_full_name",
				"customer_username",
				"customer_metadata_keys",
				"product_name",
				"product_url",
				"product_latest_release",
				"product_metadata_keys",
				"updated_at",
			}),
		}).
		Create(policy).Error
}
