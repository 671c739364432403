package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/licensehub/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert appends an entry. Audit rows are never updated or deleted.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns up to Limit+1 rows, newest first, so the caller can tell
// whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	q := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("team_id = ?", filter.TeamID).
		Scopes(matching(filter), within(filter), after(filter.Cursor)).
		Order("created_at DESC").
		Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func matching(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		for column, value := range map[string]string{
			"action":      f.Action,
			"target_type": f.TargetType,
			"target_id":   f.TargetID,
			"actor_type":  f.ActorType,
		} {
			if value = strings.TrimSpace(value); value != "" {
				q = q.Where(column+" = ?", value)
			}
		}
		return q
	}
}

func within(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.StartAt != nil {
			q = q.Where("created_at >= ?", f.StartAt.UTC())
		}
		if f.EndAt != nil {
			q = q.Where("created_at <= ?", f.EndAt.UTC())
		}
		return q
	}
}

func after(c *domain.AuditCursor) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if c == nil {
			return q
		}
		return q.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}
}
