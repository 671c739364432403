package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/customer/domain"
	"github.com/smallbiznis/licensehub/pkg/db/option"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func inTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) *gorm.DB {
	return db.WithContext(ctx).Model(&domain.Customer{}).Where("team_id = ?", teamID)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

// FindByID returns nil, nil when the customer does not exist in the team.
func (r *repo) FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := inTeam(ctx, db, teamID).Where("id = ?", id).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByIDs returns the subset of ids owned by the team, oldest first.
func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ids []snowflake.ID) ([]*domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var customers []*domain.Customer
	err := inTeam(ctx, db, teamID).
		Where("id IN ?", ids).
		Order("created_at, id").
		Find(&customers).Error
	return customers, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, teamID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	q := inTeam(ctx, db, teamID)
	if filter.Email != "" {
		q = q.Where("email = ?", filter.Email)
	}
	if filter.Username != "" {
		q = q.Where("username = ?", filter.Username)
	}

	var customers []*domain.Customer
	err := option.ApplyPagination(page).Apply(q).
		Order("created_at DESC, id DESC").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
