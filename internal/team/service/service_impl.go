package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 20

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("team.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTeamRequest) (domain.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Team{}, domain.ErrInvalidName
	}

	base := slug.Make(name)
	if base == "" {
		return domain.Team{}, domain.ErrInvalidName
	}

	teamSlug, err := s.availableSlug(ctx, base)
	if err != nil {
		return domain.Team{}, err
	}

	now := s.clock.Now()
	team := domain.Team{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      teamSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &team); err != nil {
		return domain.Team{}, err
	}

	s.log.Info("team created", zap.String("team_id", team.ID.String()), zap.String("slug", team.Slug))
	return team, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Team, error) {
	teamID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || teamID == 0 {
		return domain.Team{}, domain.ErrInvalidID
	}

	team, err := s.repo.FindByID(ctx, s.db, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	if team == nil {
		return domain.Team{}, domain.ErrNotFound
	}
	return *team, nil
}

// availableSlug appends -2, -3, ... until the slug is free.
func (s *Service) availableSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		existing, err := s.repo.FindBySlug(ctx, s.db, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.ErrSlugTaken
}
