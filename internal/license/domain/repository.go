package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CustomerID snowflake.ID
	ProductID  snowflake.ID
	Suspended  *bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, license *License) error
	InsertCustomerLinks(ctx context.Context, db *gorm.DB, teamID, licenseID snowflake.ID, customerIDs []snowflake.ID) error
	InsertProductLinks(ctx context.Context, db *gorm.DB, teamID, licenseID snowflake.ID, productIDs []snowflake.ID) error

	FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*License, error)
	FindByLookup(ctx context.Context, db *gorm.DB, teamID snowflake.ID, lookup string) (*License, error)
	ExistsByLookup(ctx context.Context, db *gorm.DB, teamID snowflake.ID, lookup string) (bool, error)
	List(ctx context.Context, db *gorm.DB, teamID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*License, error)

	CustomerIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, licenseIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error)
	ProductIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, licenseIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error)

	UpdateSuspended(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID, suspended bool, now time.Time) (bool, error)
	// Activate stamps the first activation. It only succeeds once per license.
	Activate(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID, activatedAt time.Time, expirationDate *time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (bool, error)
}

// ActivationLocker serializes first activations of a license across instances.
type ActivationLocker interface {
	TryLockActivation(ctx context.Context, teamID, licenseID string) (string, bool, error)
	ReleaseActivation(ctx context.Context, teamID, licenseID, token string) error
}
