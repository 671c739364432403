package domain

import (
	"context"
	"errors"
	"time"

	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)

	CreateRelease(ctx context.Context, productID string, req CreateReleaseRequest) (*ReleaseResponse, error)
	ListReleases(ctx context.Context, productID string) ([]ReleaseResponse, error)
	SetLatestRelease(ctx context.Context, productID, releaseID string) (*ReleaseResponse, error)
}

type ListRequest struct {
	Name string
}

type CreateRequest struct {
	Name     string                 `json:"name"`
	URL      *string                `json:"url"`
	Metadata []metadatadomain.Entry `json:"metadata"`
}

type CreateReleaseRequest struct {
	Version string `json:"version"`
	Latest  bool   `json:"latest"`
}

type Response struct {
	ID            string                 `json:"id"`
	TeamID        string                 `json:"team_id"`
	Name          string                 `json:"name"`
	URL           *string                `json:"url,omitempty"`
	Metadata      []metadatadomain.Entry `json:"metadata"`
	LatestRelease *ReleaseResponse       `json:"latest_release,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type ReleaseResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Version   string    `json:"version"`
	Latest    bool      `json:"latest"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidTeam     = errors.New("invalid_team")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidURL      = errors.New("invalid_url")
	ErrInvalidVersion  = errors.New("invalid_version")
	ErrNotFound        = errors.New("not_found")
	ErrReleaseNotFound = errors.New("release_not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrVersionConflict = errors.New("version_conflict")
)
