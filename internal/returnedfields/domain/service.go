package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Get returns the policy of the team in context, or nil if absent.
	Get(ctx context.Context) (*Policy, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Policy, error)
	// Policy is the cached read used on the verification path.
	Policy(ctx context.Context, teamID snowflake.ID) (*Policy, error)
}

type UpsertRequest struct {
	LicenseIPLimit         bool     `json:"licenseIpLimit"`
	LicenseSeats           bool     `json:"licenseSeats"`
	LicenseExpirationType  bool     `json:"licenseExpirationType"`
	LicenseExpirationStart bool     `json:"licenseExpirationStart"`
	LicenseExpirationDate  bool     `json:"licenseExpirationDate"`
	LicenseExpirationDays  bool     `json:"licenseExpirationDays"`
	LicenseMetadataKeys    []string `json:"licenseMetadataKeys"`

	CustomerEmail        bool     `json:"customerEmail"`
	CustomerFullName     bool     `json:"customerFullName"`
	CustomerUsername     bool     `json:"customerUsername"`
	CustomerMetadataKeys []string `json:"customerMetadataKeys"`

	ProductName          bool     `json:"productName"`
	ProductURL           bool     `json:"productUrl"`
	ProductLatestRelease bool     `json:"productLatestRelease"`
	ProductMetadataKeys  []string `json:"productMetadataKeys"`
}

var (
	ErrInvalidTeam        = errors.New("invalid_team")
	ErrInvalidMetadataKey = errors.New("invalid_metadata_key")
	ErrTooManyKeys        = errors.New("too_many_metadata_keys")
)
