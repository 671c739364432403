package domain

import (
	"context"
	"errors"

	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	Email     string
	Username  string
}

type ListCustomerFilter struct {
	Email    string
	Username string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Email    string                 `json:"email" validate:"omitempty,email,max=320"`
	FullName string                 `json:"full_name" validate:"max=200"`
	Username string                 `json:"username" validate:"max=100"`
	Metadata []metadatadomain.Entry `json:"metadata"`
}

type GetCustomerRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
}

var (
	ErrInvalidTeam  = errors.New("invalid_team")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidName  = errors.New("invalid_full_name")
	ErrInvalidUser  = errors.New("invalid_username")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
)
