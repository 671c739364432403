package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
)

// Policy is a team's disclosure policy for the verification response.
// A team without a row discloses nothing.
type Policy struct {
	TeamID snowflake.ID `json:"team_id" gorm:"primaryKey;column:team_id"`

	LicenseIPLimit         bool           `json:"licenseIpLimit" gorm:"column:license_ip_limit;not null"`
	LicenseSeats           bool           `json:"licenseSeats" gorm:"column:license_seats;not null"`
	LicenseExpirationType  bool           `json:"licenseExpirationType" gorm:"column:license_expiration_type;not null"`
	LicenseExpirationStart bool           `json:"licenseExpirationStart" gorm:"column:license_expiration_start;not null"`
	LicenseExpirationDate  bool           `json:"licenseExpirationDate" gorm:"column:license_expiration_date;not null"`
	LicenseExpirationDays  bool           `json:"licenseExpirationDays" gorm:"column:license_expiration_days;not null"`
	LicenseMetadataKeys    pq.StringArray `json:"licenseMetadataKeys" gorm:"column:license_metadata_keys;type:text[];not null"`

	CustomerEmail        bool           `json:"customerEmail" gorm:"column:customer_email;not null"`
	CustomerFullName     bool           `json:"customerFullName" gorm:"column:customer_full_name;not null"`
	CustomerUsername     bool           `json:"customerUsername" gorm:"column:customer_username;not null"`
	CustomerMetadataKeys pq.StringArray `json:"customerMetadataKeys" gorm:"column:customer_metadata_keys;type:text[];not null"`

	ProductName          bool           `json:"productName" gorm:"column:product_name;not null"`
	ProductURL           bool           `json:"productUrl" gorm:"column:product_url;not null"`
	ProductLatestRelease bool           `json:"productLatestRelease" gorm:"column:product_latest_release;not null"`
	ProductMetadataKeys  pq.StringArray `json:"productMetadataKeys" gorm:"column:product_metadata_keys;type:text[];not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Policy) TableName() string { return "returned_fields" }

// Projection is the verification payload disclosed to third parties. Absent
// keys mean "not disclosed", so every field is omitted when empty.
type Projection struct {
	License   *LicenseFields   `json:"license,omitempty"`
	Customers []CustomerFields `json:"customers,omitempty"`
	Products  []ProductFields  `json:"products,omitempty"`
}

type LicenseFields struct {
	IPLimit         *int                   `json:"ipLimit,omitempty"`
	Seats           *int                   `json:"seats,omitempty"`
	ExpirationType  *string                `json:"expirationType,omitempty"`
	ExpirationStart *string                `json:"expirationStart,omitempty"`
	ExpirationDate  *time.Time             `json:"expirationDate,omitempty"`
	ExpirationDays  *int                   `json:"expirationDays,omitempty"`
	Metadata        []metadatadomain.Entry `json:"metadata,omitempty"`
}

func (l LicenseFields) IsEmpty() bool {
	return l.IPLimit == nil && l.Seats == nil && l.ExpirationType == nil &&
		l.ExpirationStart == nil && l.ExpirationDate == nil && l.ExpirationDays == nil &&
		len(l.Metadata) == 0
}

type CustomerFields struct {
	Email    *string                `json:"email,omitempty"`
	FullName *string                `json:"fullName,omitempty"`
	Username *string                `json:"username,omitempty"`
	Metadata []metadatadomain.Entry `json:"metadata,omitempty"`
}

func (c CustomerFields) IsEmpty() bool {
	return c.Email == nil && c.FullName == nil && c.Username == nil && len(c.Metadata) == 0
}

type ProductFields struct {
	Name          *string                `json:"name,omitempty"`
	URL           *string                `json:"url,omitempty"`
	LatestRelease *ReleaseFields         `json:"latestRelease,omitempty"`
	Metadata      []metadatadomain.Entry `json:"metadata,omitempty"`
}

func (p ProductFields) IsEmpty() bool {
	return p.Name == nil && p.URL == nil && p.LatestRelease == nil && len(p.Metadata) == 0
}

type ReleaseFields struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// Empty reports whether a projection discloses nothing at all.
func (p *Projection) Empty() bool {
	return p == nil || (p.License == nil && len(p.Customers) == 0 && len(p.Products) == 0)
}

