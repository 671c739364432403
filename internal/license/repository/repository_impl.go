package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/pkg/db/option"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"gorm.io/gorm"
)

const licenseColumns = `id, team_id, license_key, license_key_lookup, ip_limit, seats,
	expiration_type, expiration_start, expiration_date, expiration_days,
	suspended, activated_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, license *domain.License) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO licenses (`+licenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		license.ID,
		license.TeamID,
		license.LicenseKey,
		license.LicenseKeyLookup,
		license.IPLimit,
		license.Seats,
		license.ExpirationType,
		license.ExpirationStart,
		license.ExpirationDate,
		license.ExpirationDays,
		license.Suspended,
		license.ActivatedAt,
		license.CreatedAt,
		license.UpdatedAt,
	).Error
}

func (r *repo) InsertCustomerLinks(ctx context.Context, db *gorm.DB, teamID, licenseID snowflake.ID, customerIDs []snowflake.ID) error {
	for _, customerID := range customerIDs {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO license_customers (license_id, customer_id, team_id) VALUES (?, ?, ?)`,
			licenseID,
			customerID,
			teamID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertProductLinks(ctx context.Context, db *gorm.DB, teamID, licenseID snowflake.ID, productIDs []snowflake.ID) error {
	for _, productID := range productIDs {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO license_products (license_id, product_id, team_id) VALUES (?, ?, ?)`,
			licenseID,
			productID,
			teamID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*domain.License, error) {
	var license domain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE team_id = ? AND id = ?`,
		teamID,
		id,
	).Scan(&license).Error
	if err != nil {
		return nil, err
	}
	if license.ID == 0 {
		return nil, nil
	}
	return &license, nil
}

func (r *repo) FindByLookup(ctx context.Context, db *gorm.DB, teamID snowflake.ID, lookup string) (*domain.License, error) {
	var license domain.License
	err := db.WithContext(ctx).Raw(
		`SELECT `+licenseColumns+` FROM licenses WHERE team_id = ? AND license_key_lookup = ?`,
		teamID,
		lookup,
	).Scan(&license).Error
	if err != nil {
		return nil, err
	}
	if license.ID == 0 {
		return nil, nil
	}
	return &license, nil
}

func (r *repo) ExistsByLookup(ctx context.Context, db *gorm.DB, teamID snowflake.ID, lookup string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM licenses WHERE team_id = ? AND license_key_lookup = ?`,
		teamID,
		lookup,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, teamID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.License, error) {
	var licenses []*domain.License
	stmt := db.WithContext(ctx).
		Model(&domain.License{}).
		Where("team_id = ?", teamID)
	if filter.CustomerID != 0 {
		stmt = stmt.Where("id IN (SELECT license_id FROM license_customers WHERE team_id = ? AND customer_id = ?)", teamID, filter.CustomerID)
	}
	if filter.ProductID != 0 {
		stmt = stmt.Where("id IN (SELECT license_id FROM license_products WHERE team_id = ? AND product_id = ?)", teamID, filter.ProductID)
	}
	if filter.Suspended != nil {
		stmt = stmt.Where("suspended = ?", *filter.Suspended)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&licenses).Error
	if err != nil {
		return nil, err
	}
	return licenses, nil
}

func (r *repo) CustomerIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, licenseIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error) {
	return r.links(ctx, db, "license_customers", "customer_id", teamID, licenseIDs)
}

func (r *repo) ProductIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, licenseIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error) {
	return r.links(ctx, db, "license_products", "product_id", teamID, licenseIDs)
}

type linkRow struct {
	LicenseID snowflake.ID
	TargetID  snowflake.ID
}

// links reads one of the two link tables. table and column are constants.
func (r *repo) links(ctx context.Context, db *gorm.DB, table, column string, teamID snowflake.ID, licenseIDs []snowflake.ID) (map[snowflake.ID][]snowflake.ID, error) {
	out := make(map[snowflake.ID][]snowflake.ID, len(licenseIDs))
	if len(licenseIDs) == 0 {
		return out, nil
	}

	var rows []linkRow
	err := db.WithContext(ctx).Raw(
		`SELECT license_id, `+column+` AS target_id FROM `+table+`
		 WHERE team_id = ? AND license_id IN ?
		 ORDER BY license_id, `+column,
		teamID,
		licenseIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.LicenseID] = append(out[row.LicenseID], row.TargetID)
	}
	return out, nil
}

func (r *repo) UpdateSuspended(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID, suspended bool, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE licenses SET suspended = ?, updated_at = ? WHERE team_id = ? AND id = ?`,
		suspended,
		now,
		teamID,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Activate(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID, activatedAt time.Time, expirationDate *time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE licenses SET activated_at = ?, expiration_date = ?, updated_at = ?
		 WHERE team_id = ? AND id = ? AND activated_at IS NULL`,
		activatedAt,
		expirationDate,
		activatedAt,
		teamID,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (bool, error) {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM license_customers WHERE team_id = ? AND license_id = ?`, teamID, id,
	).Error; err != nil {
		return false, err
	}
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM license_products WHERE team_id = ? AND license_id = ?`, teamID, id,
	).Error; err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(`DELETE FROM licenses WHERE team_id = ? AND id = ?`, teamID, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
