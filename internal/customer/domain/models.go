package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
)

// Customer is a licensee owned by a team. Every descriptive field is
// optional; a customer may be nothing more than an id bound to licenses.
type Customer struct {
	ID        snowflake.ID           `gorm:"primaryKey" json:"id"`
	TeamID    snowflake.ID           `gorm:"not null;index" json:"team_id"`
	Email     *string                `gorm:"column:email" json:"email,omitempty"`
	FullName  *string                `gorm:"column:full_name" json:"full_name,omitempty"`
	Username  *string                `gorm:"column:username" json:"username,omitempty"`
	Metadata  []metadatadomain.Entry `gorm:"-" json:"metadata"`
	CreatedAt time.Time              `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time              `gorm:"not null" json:"updated_at"`
}
