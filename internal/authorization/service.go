package authorization

import (
	"context"
	"errors"
)

// Service decides whether a dashboard actor may perform an action on an
// object inside a team.
type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

// Actor is the authenticated dashboard principal. Role comes from the
// session token and is one of RoleOwner, RoleAdmin or RoleMember.
type Actor struct {
	Subject string
	TeamID  string
	Role    string
}

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidTeam   = errors.New("invalid_team")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
