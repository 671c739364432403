package domain

import (
	"context"
	"errors"
	"time"

	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	returnedfieldsdomain "github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
)

type Service interface {
	// Create issues a license. The plaintext key is only ever returned here.
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	Reveal(ctx context.Context, id string) (*RevealResponse, error)
	SetSuspended(ctx context.Context, id string, suspended bool) (*Response, error)
	Delete(ctx context.Context, id string) error

	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	SigningSecret(ctx context.Context) (string, error)
}

type CreateRequest struct {
	IPLimit         *int                   `json:"ipLimit"`
	Seats           *int                   `json:"seats"`
	ExpirationType  string                 `json:"expirationType"`
	ExpirationStart string                 `json:"expirationStart"`
	ExpirationDate  *time.Time             `json:"expirationDate"`
	ExpirationDays  *int                   `json:"expirationDays"`
	CustomerIDs     []string               `json:"customerIds"`
	ProductIDs      []string               `json:"productIds"`
	Metadata        []metadatadomain.Entry `json:"metadata"`
}

type CreateResponse struct {
	ID         string `json:"id"`
	LicenseKey string `json:"licenseKey"`
}

type RevealResponse struct {
	ID         string `json:"id"`
	LicenseKey string `json:"licenseKey"`
}

type ListRequest struct {
	PageToken  string
	PageSize   int
	CustomerID string
	ProductID  string
	Suspended  *bool
}

type ListResponse struct {
	pagination.PageInfo
	Licenses []Response `json:"licenses"`
}

type Response struct {
	ID              string                 `json:"id"`
	TeamID          string                 `json:"teamId"`
	IPLimit         *int                   `json:"ipLimit"`
	Seats           *int                   `json:"seats"`
	ExpirationType  ExpirationType         `json:"expirationType"`
	ExpirationStart ExpirationStart        `json:"expirationStart"`
	ExpirationDate  *time.Time             `json:"expirationDate"`
	ExpirationDays  *int                   `json:"expirationDays"`
	Suspended       bool                   `json:"suspended"`
	ActivatedAt     *time.Time             `json:"activatedAt"`
	CustomerIDs     []string               `json:"customerIds"`
	ProductIDs      []string               `json:"productIds"`
	Metadata        []metadatadomain.Entry `json:"metadata"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type VerificationCode string

const (
	CodeValid            VerificationCode = "VALID"
	CodeLicenseNotFound  VerificationCode = "LICENSE_NOT_FOUND"
	CodeLicenseSuspended VerificationCode = "LICENSE_SUSPENDED"
	CodeLicenseExpired   VerificationCode = "LICENSE_EXPIRED"
	CodeCustomerNotFound VerificationCode = "CUSTOMER_NOT_FOUND"
	CodeProductNotFound  VerificationCode = "PRODUCT_NOT_FOUND"
)

type VerifyRequest struct {
	LicenseKey string `json:"licenseKey"`
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Challenge  string `json:"challenge"`
}

type VerifyResult struct {
	Valid             bool             `json:"valid"`
	Code              VerificationCode `json:"code"`
	Timestamp         time.Time        `json:"timestamp"`
	ChallengeResponse string           `json:"challengeResponse,omitempty"`
}

// VerifyResponse is returned to third-party integrators. Data is null unless
// the license is valid and the team's policy discloses something.
type VerifyResponse struct {
	Result VerifyResult                     `json:"result"`
	Data   *returnedfieldsdomain.Projection `json:"data"`
}

const MaxChallengeLength = 1024

var (
	ErrInvalidTeam       = errors.New("invalid_team")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidLicenseKey = errors.New("invalid_license_key")
	ErrInvalidExpiration = errors.New("invalid_expiration")
	ErrInvalidLimit      = errors.New("invalid_limit")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidProduct    = errors.New("invalid_product")
	ErrInvalidChallenge  = errors.New("invalid_challenge")
	ErrConflict          = errors.New("license_conflict")
)
