package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/audit/masking"
	"github.com/smallbiznis/licensehub/internal/auditcontext"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/licensekey"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository

	// Formats lets masking recognise keys in the configured key formats.
	Formats licensekey.FormatSource `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    auditdomain.Repository
	formats licensekey.FormatSource
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		formats: p.Formats,
	}
}

func (s *Service) AuditLog(ctx context.Context, teamID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	entry := s.newEntry(ctx, teamID, action, targetType, targetID)
	entry.ActorType, entry.ActorID = resolveActor(ctx, strings.TrimSpace(actorType), actorID)
	entry.Metadata = s.metadata(ctx, metadata)

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("audit insert failed",
			zap.String("action", action),
			zap.String("target_type", entry.TargetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) newEntry(ctx context.Context, teamID *snowflake.ID, action, targetType string, targetID *string) *auditdomain.AuditLog {
	entry := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		TeamID:     teamID,
		Action:     action,
		TargetType: strings.TrimSpace(targetType),
		TargetID:   trimmedOrNil(targetID),
		IPAddress:  nonEmpty(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  nonEmpty(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now(),
	}
	if entry.TargetType == "" {
		entry.TargetType = "unknown"
	}
	if teamID == nil || *teamID == 0 {
		entry.TeamID = nil
		if team, ok := teamcontext.FromContext(ctx); ok {
			entry.TeamID = &team.ID
		}
	}
	return entry
}

// metadata masks secret-looking values and stamps the request id.
func (s *Service) metadata(ctx context.Context, in map[string]any) datatypes.JSONMap {
	var isKey func(string) bool
	if s.formats != nil {
		isKey = s.formats.Matcher().Matches
	}
	out := masking.MaskSensitiveWith(in, isKey)
	if out == nil {
		out = map[string]any{}
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		out["request_id"] = requestID
	}
	return datatypes.JSONMap(out)
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	var empty auditdomain.ListAuditLogResponse

	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return empty, auditdomain.ErrInvalidTeam
	}
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return empty, auditdomain.ErrInvalidTimeRange
	}
	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return empty, err
	}

	limit := req.Pagination.Limit()
	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		TeamID:     team.ID,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return empty, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, limit, encodeCursor)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	logs := make([]auditdomain.AuditLog, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			logs = append(logs, *row)
		}
	}
	return auditdomain.ListAuditLogResponse{PageInfo: *pageInfo, AuditLogs: logs}, nil
}

func encodeCursor(row *auditdomain.AuditLog) string {
	return pagination.KeysetToken(row.ID, row.CreatedAt)
}

func decodeCursor(token string) (*auditdomain.AuditCursor, error) {
	ks, err := pagination.ParseKeyset(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	if ks == nil {
		return nil, nil
	}
	return &auditdomain.AuditCursor{ID: ks.ID, CreatedAt: ks.CreatedAt}, nil
}

// resolveActor falls back to the actor on ctx, then to the system actor.
func resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	if actorType != "" {
		return actorType, trimmedOrNil(actorID)
	}
	ctxType, ctxID := auditcontext.ActorFromContext(ctx)
	if ctxType == "" {
		return string(auditdomain.ActorTypeSystem), trimmedOrNil(actorID)
	}
	if id := trimmedOrNil(actorID); id != nil {
		return ctxType, id
	}
	return ctxType, nonEmpty(ctxID)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	return nonEmpty(strings.TrimSpace(*value))
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
