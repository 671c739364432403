package domain

import (
	"context"
	"errors"
	"time"
)

const (
	ScopeLicensesRead  = "licenses:read"
	ScopeLicensesWrite = "licenses:write"
)

// AllScopes lists every scope a key can be granted.
var AllScopes = []string{ScopeLicensesRead, ScopeLicensesWrite}

// ScopeDescriptions is shown by the dashboard when picking scopes.
var ScopeDescriptions = map[string]string{
	ScopeLicensesRead:  "List and read licenses, customers, products and policies.",
	ScopeLicensesWrite: "Create, suspend and delete licenses and manage their settings.",
}

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
	// Authenticate resolves a raw bearer key to its active record.
	Authenticate(ctx context.Context, raw string) (*APIKey, error)
}

type CreateRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type Response struct {
	KeyID      string     `json:"key_id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
}

type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidTeam  = errors.New("invalid_team")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidKeyID = errors.New("invalid_key_id")
	ErrInvalidScope = errors.New("invalid_scope")
	ErrNotFound     = errors.New("not_found")
	ErrUnauthorized = errors.New("unauthorized")
)
