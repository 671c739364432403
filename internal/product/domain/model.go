package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
)

type Product struct {
	ID        snowflake.ID           `json:"id" gorm:"primaryKey"`
	TeamID    snowflake.ID           `json:"team_id" gorm:"column:team_id;not null;index"`
	Name      string                 `json:"name" gorm:"type:text;not null"`
	URL       *string                `json:"url,omitempty" gorm:"column:url;type:text"`
	Metadata  []metadatadomain.Entry `json:"metadata" gorm:"-"`
	CreatedAt time.Time              `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time              `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Release is a published version of a product. At most one release per
// product carries Latest.
type Release struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	TeamID    snowflake.ID `json:"team_id" gorm:"column:team_id;not null"`
	ProductID snowflake.ID `json:"product_id" gorm:"column:product_id;not null"`
	Version   string       `json:"version" gorm:"type:text;not null"`
	Latest    bool         `json:"latest" gorm:"not null;default:false"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Release) TableName() string { return "releases" }
