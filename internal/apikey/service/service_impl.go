package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/licensehub/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix      = "lh_live_"
	keyIDPrefix       = "key_"
	apiKeySecretBytes = 32

	// last_used_at is written at most this often per key.
	lastUsedResolution = time.Minute
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     apikeydomain.Repository
	Hasher   apikeydomain.Hasher
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     apikeydomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	hasher   apikeydomain.Hasher
	auditSvc auditdomain.Service
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("apikey.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		hasher:   p.Hasher,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, apikeydomain.ErrInvalidTeam
	}

	items, err := s.repo.List(ctx, s.db, team.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i]))
	}

	return resp, nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, apikeydomain.ErrInvalidTeam
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		return nil, err
	}

	id := s.genID.Generate()
	keyID := keyIDPrefix + strings.ToUpper(strconv.FormatInt(id.Int64(), 36))
	plain, err := mintAPIKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("mint api key: %w", err)
	}

	now := s.clock.Now()
	key := &apikeydomain.APIKey{
		ID:        id,
		TeamID:    team.ID,
		KeyID:     keyID,
		Name:      name,
		Scopes:    scopes,
		KeyHash:   apikeydomain.HashAPIKey(s.hasher, plain),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	// the plaintext is masked by the audit service before it is stored
	s.audit(ctx, team.ID, auditdomain.ActionAPIKeyCreate, keyID, map[string]any{
		"name":    name,
		"scopes":  scopes,
		"api_key": plain,
	})
	return &apikeydomain.SecretResponse{KeyID: keyID, APIKey: plain}, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return apikeydomain.ErrInvalidTeam
	}
	keyID = strings.TrimSpace(keyID)
	if !strings.HasPrefix(keyID, keyIDPrefix) || len(keyID) == len(keyIDPrefix) {
		return apikeydomain.ErrInvalidKeyID
	}

	revoked, err := s.repo.Revoke(ctx, s.db, team.ID, keyID, s.clock.Now())
	switch {
	case err != nil:
		return err
	case !revoked:
		return apikeydomain.ErrNotFound
	}
	s.audit(ctx, team.ID, auditdomain.ActionAPIKeyRevoke, keyID, nil)
	return nil
}

// Authenticate resolves a bearer key by its hash. Unknown, malformed and
// revoked keys are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		return nil, apikeydomain.ErrUnauthorized
	}

	key, err := s.repo.FindActiveByHash(ctx, s.db, apikeydomain.HashAPIKey(s.hasher, raw))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, apikeydomain.ErrUnauthorized
	}

	now := s.clock.Now()
	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) >= lastUsedResolution {
		if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, now); err != nil {
			s.log.Warn("api key last_used_at update failed", zap.String("key_id", key.KeyID), zap.Error(err))
		} else {
			key.LastUsedAt = &now
		}
	}
	return key, nil
}

func (s *Service) audit(ctx context.Context, teamID snowflake.ID, action, keyID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, &teamID, "", nil, action, "api_key", &keyID, metadata); err != nil {
		s.log.Warn("api key audit failed", zap.String("action", action), zap.String("key_id", keyID), zap.Error(err))
	}
}

func (s *Service) toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	resp := apikeydomain.Response{
		KeyID:      key.KeyID,
		Name:       key.Name,
		Scopes:     []string{},
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
		RevokedAt:  key.RevokedAt,
	}
	if len(key.Scopes) > 0 {
		resp.Scopes = slices.Clone([]string(key.Scopes))
	}
	return resp
}

// normalizeScopes dedupes the request and defaults to every scope.
func normalizeScopes(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return slices.Clone(apikeydomain.AllScopes), nil
	}
	var out []string
	for _, scope := range requested {
		scope = strings.TrimSpace(scope)
		switch {
		case !slices.Contains(apikeydomain.AllScopes, scope):
			return nil, apikeydomain.ErrInvalidScope
		case !slices.Contains(out, scope):
			out = append(out, scope)
		}
	}
	return out, nil
}

// mintAPIKey returns lh_live_<key id body>_<64 hex chars>.
func mintAPIKey(keyID string) (string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return apiKeyPrefix + strings.TrimPrefix(keyID, keyIDPrefix) + "_" + hex.EncodeToString(secret), nil
}
