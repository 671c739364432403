package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, team_id, name, url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.TeamID,
		product.Name,
		product.URL,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, name, url, created_at, updated_at
		 FROM products WHERE team_id = ? AND id = ?`,
		teamID,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ids []snowflake.ID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []*domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, name, url, created_at, updated_at
		 FROM products WHERE team_id = ? AND id IN ?
		 ORDER BY created_at, id`,
		teamID,
		ids,
	).Scan(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB, teamID snowflake.ID, filter domain.ListRequest) ([]*domain.Product, error) {
	var products []*domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{}).Where("team_id = ?", teamID)
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) InsertRelease(ctx context.Context, db *gorm.DB, release *domain.Release) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO releases (id, team_id, product_id, version, latest, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		release.ID,
		release.TeamID,
		release.ProductID,
		release.Version,
		release.Latest,
		release.CreatedAt,
	).Error
}

func (r *repo) FindRelease(ctx context.Context, db *gorm.DB, teamID, productID, id snowflake.ID) (*domain.Release, error) {
	var release domain.Release
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, product_id, version, latest, created_at
		 FROM releases WHERE team_id = ? AND product_id = ? AND id = ?`,
		teamID,
		productID,
		id,
	).Scan(&release).Error
	if err != nil {
		return nil, err
	}
	if release.ID == 0 {
		return nil, nil
	}
	return &release, nil
}

func (r *repo) ListReleases(ctx context.Context, db *gorm.DB, teamID, productID snowflake.ID) ([]domain.Release, error) {
	var releases []domain.Release
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, product_id, version, latest, created_at
		 FROM releases WHERE team_id = ? AND product_id = ?
		 ORDER BY created_at DESC, id DESC`,
		teamID,
		productID,
	).Scan(&releases).Error
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func (r *repo) ClearLatest(ctx context.Context, db *gorm.DB, teamID, productID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE releases SET latest = ? WHERE team_id = ? AND product_id = ? AND latest = ?`,
		false,
		teamID,
		productID,
		true,
	).Error
}

func (r *repo) MarkLatest(ctx context.Context, db *gorm.DB, teamID, releaseID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE releases SET latest = ? WHERE team_id = ? AND id = ?`,
		true,
		teamID,
		releaseID,
	).Error
}

func (r *repo) LatestReleases(ctx context.Context, db *gorm.DB, teamID snowflake.ID, productIDs []snowflake.ID) (map[snowflake.ID]*domain.Release, error) {
	out := make(map[snowflake.ID]*domain.Release, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var releases []domain.Release
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, product_id, version, latest, created_at
		 FROM releases WHERE team_id = ? AND product_id IN ? AND latest = ?`,
		teamID,
		productIDs,
		true,
	).Scan(&releases).Error
	if err != nil {
		return nil, err
	}
	for i := range releases {
		out[releases[i].ProductID] = &releases[i]
	}
	return out, nil
}
