package domain

import (
	"context"
	"errors"
)

type CreateTeamRequest struct {
	Name string `json:"name"`
}

type Service interface {
	Create(ctx context.Context, req CreateTeamRequest) (Team, error)
	GetByID(ctx context.Context, id string) (Team, error)
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidID   = errors.New("invalid_id")
	ErrSlugTaken   = errors.New("slug_taken")
	ErrNotFound    = errors.New("not_found")
)
