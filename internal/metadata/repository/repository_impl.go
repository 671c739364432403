package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/metadata/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Replace swaps every entry of an owner for rows. Callers run it inside the
// transaction that writes the owner.
func (r *repo) Replace(ctx context.Context, db *gorm.DB, rows []domain.Row, teamID snowflake.ID, ownerType domain.OwnerType, ownerID snowflake.ID) error {
	if err := r.DeleteByOwner(ctx, db, teamID, ownerType, ownerID); err != nil {
		return err
	}
	for _, row := range rows {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO metadata (id, team_id, owner_type, owner_id, meta_key, meta_value, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.ID,
			teamID,
			ownerType,
			ownerID,
			row.Key,
			row.Value,
			row.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListByOwners(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ownerType domain.OwnerType, ownerIDs []snowflake.ID) (map[snowflake.ID][]domain.Entry, error) {
	out := make(map[snowflake.ID][]domain.Entry, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	var rows []domain.Row
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, owner_type, owner_id, meta_key, meta_value, created_at
		 FROM metadata
		 WHERE team_id = ? AND owner_type = ? AND owner_id IN ?
		 ORDER BY owner_id, id`,
		teamID,
		ownerType,
		ownerIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OwnerID] = append(out[row.OwnerID], domain.Entry{Key: row.Key, Value: row.Value})
	}
	return out, nil
}

func (r *repo) DeleteByOwner(ctx context.Context, db *gorm.DB, teamID snowflake.ID, ownerType domain.OwnerType, ownerID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM metadata WHERE team_id = ? AND owner_type = ? AND owner_id = ?`,
		teamID,
		ownerType,
		ownerID,
	).Error
}
