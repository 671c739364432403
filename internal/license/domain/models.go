package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/licensehub/internal/customer/domain"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	productdomain "github.com/smallbiznis/licensehub/internal/product/domain"
)

type ExpirationType string

const (
	ExpirationNever    ExpirationType = "NEVER"
	ExpirationDate     ExpirationType = "DATE"
	ExpirationDuration ExpirationType = "DURATION"
)

type ExpirationStart string

const (
	StartCreation   ExpirationStart = "CREATION"
	StartActivation ExpirationStart = "ACTIVATION"
)

// License stores the key only as ciphertext plus the team-scoped lookup
// token. The plaintext never reaches this struct.
type License struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	TeamID           snowflake.ID    `gorm:"column:team_id;not null;uniqueIndex:ux_licenses_team_lookup,priority:1"`
	LicenseKey       string          `gorm:"column:license_key;type:text;not null"`
	LicenseKeyLookup string          `gorm:"column:license_key_lookup;type:text;not null;uniqueIndex:ux_licenses_team_lookup,priority:2"`
	IPLimit          *int            `gorm:"column:ip_limit"`
	Seats            *int            `gorm:"column:seats"`
	ExpirationType   ExpirationType  `gorm:"column:expiration_type;type:text;not null"`
	ExpirationStart  ExpirationStart `gorm:"column:expiration_start;type:text;not null"`
	ExpirationDate   *time.Time      `gorm:"column:expiration_date"`
	ExpirationDays   *int            `gorm:"column:expiration_days"`
	Suspended        bool            `gorm:"column:suspended;not null;default:false"`
	ActivatedAt      *time.Time      `gorm:"column:activated_at"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

func (License) TableName() string { return "licenses" }

// PendingActivation reports whether the expiration clock starts on the
// first verification and has not started yet.
func (l License) PendingActivation() bool {
	return l.ExpirationType == ExpirationDuration &&
		l.ExpirationStart == StartActivation &&
		l.ExpirationDate == nil
}

// Expired reports whether the license is past its expiration date at now.
func (l License) Expired(now time.Time) bool {
	if l.ExpirationType == ExpirationNever || l.ExpirationDate == nil {
		return false
	}
	return !now.Before(*l.ExpirationDate)
}

// Aggregate is a license with everything the verification response may
// disclose: its metadata, its customers and its products.
type Aggregate struct {
	License   License
	Metadata  []metadatadomain.Entry
	Customers []customerdomain.Customer
	Products  []AggregateProduct
}

type AggregateProduct struct {
	Product       productdomain.Product
	LatestRelease *productdomain.Release
}
