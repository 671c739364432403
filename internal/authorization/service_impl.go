package authorization

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

// request is a validated Authorize call in casbin terms.
type request struct {
	subject string
	teamID  snowflake.ID
	role    string
	object  string
	action  string
}

func (r request) user() string   { return "user:" + r.subject }
func (r request) domain() string { return "team:" + r.teamID.String() }

func newRequest(actor Actor, object, action string) (request, error) {
	req := request{
		subject: strings.TrimSpace(actor.Subject),
		role:    strings.ToLower(strings.TrimSpace(actor.Role)),
		object:  strings.TrimSpace(object),
		action:  strings.TrimSpace(action),
	}
	if req.subject == "" {
		return req, ErrInvalidActor
	}
	teamID, err := snowflake.ParseString(strings.TrimSpace(actor.TeamID))
	if err != nil || teamID == 0 {
		return req, ErrInvalidTeam
	}
	req.teamID = teamID
	if _, ok := roleRank[req.role]; !ok {
		return req, ErrInvalidRole
	}
	if req.object == "" {
		return req, ErrInvalidObject
	}
	if req.action == "" {
		return req, ErrInvalidAction
	}
	return req, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	req, err := newRequest(actor, object, action)
	if err != nil {
		return err
	}
	if err := s.bindRole(req); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(req.user(), req.domain(), req.object, req.action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", req.user()),
			zap.String("team_id", req.teamID.String()),
			zap.String("role", req.role),
			zap.String("action", req.action),
		)
		s.audit(ctx, req, "authorization.denied")
		return ErrForbidden
	}
	if auditedGrants[req.action] {
		s.audit(ctx, req, "authorization.granted")
	}
	return nil
}

// bindRole makes the token's role the subject's only role in the team. A
// changed role replaces the previous grouping.
func (s *ServiceImpl) bindRole(req request) error {
	user, role, domain := req.user(), roleSubject(req.role), req.domain()
	has, err := s.enforcer.HasGroupingPolicy(user, role, domain)
	if err != nil || has {
		return err
	}
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(0, user, "", domain); err != nil {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(user, role, domain)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, req request, auditAction string) {
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	err := s.auditSvc.AuditLog(ctx, &req.teamID, string(auditdomain.ActorTypeUser), &req.subject,
		auditAction, "authorization", &targetID,
		map[string]any{"object": req.object, "action": req.action, "role": req.role},
	)
	if err != nil {
		s.log.Warn("authorization audit failed", zap.String("action", req.action), zap.Error(err))
	}
}
