package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*Customer, error)
	FindByIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ids []snowflake.ID) ([]*Customer, error)
	List(ctx context.Context, db *gorm.DB, teamID snowflake.ID, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
}
