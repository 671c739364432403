package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/clock"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/internal/product/domain"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/smallbiznis/licensehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	MetadataRepo metadatadomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	repo         domain.Repository
	metadataRepo metadatadomain.Repository
	genID        *snowflake.Node
	clock        clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("product.service"),
		repo:         p.Repo,
		metadataRepo: p.MetadataRepo,
		genID:        p.GenID,
		clock:        p.Clock,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	items, err := s.repo.FindAll(ctx, s.db, team.ID, domain.ListRequest{Name: strings.TrimSpace(req.Name)})
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, team.ID, items)
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	productURL, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	entries, err := metadatadomain.Normalize(req.Metadata)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:        s.genID.Generate(),
		TeamID:    team.ID,
		Name:      name,
		URL:       productURL,
		Metadata:  entries,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, p); err != nil {
			return err
		}
		rows := make([]metadatadomain.Row, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, metadatadomain.Row{ID: s.genID.Generate(), Key: entry.Key, Value: entry.Value, CreatedAt: now})
		}
		return s.metadataRepo.Replace(ctx, tx, rows, team.ID, metadatadomain.OwnerProduct, p.ID)
	})
	if err != nil {
		return nil, err
	}

	resp := s.toResponse(p, nil)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, team.ID, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp, err := s.hydrate(ctx, team.ID, []*domain.Product{item})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

func (s *Service) CreateRelease(ctx context.Context, productID string, req domain.CreateReleaseRequest) (*domain.ReleaseResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	product, err := s.findProduct(ctx, team.ID, productID)
	if err != nil {
		return nil, err
	}

	version := strings.TrimSpace(req.Version)
	if version == "" {
		return nil, domain.ErrInvalidVersion
	}

	release := &domain.Release{
		ID:        s.genID.Generate(),
		TeamID:    team.ID,
		ProductID: product.ID,
		Version:   version,
		Latest:    req.Latest,
		CreatedAt: s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if release.Latest {
			if err := s.repo.ClearLatest(ctx, tx, team.ID, product.ID); err != nil {
				return err
			}
		}
		return s.repo.InsertRelease(ctx, tx, release)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrVersionConflict
		}
		return nil, err
	}

	resp := toReleaseResponse(release)
	return &resp, nil
}

func (s *Service) ListReleases(ctx context.Context, productID string) ([]domain.ReleaseResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	product, err := s.findProduct(ctx, team.ID, productID)
	if err != nil {
		return nil, err
	}

	releases, err := s.repo.ListReleases(ctx, s.db, team.ID, product.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ReleaseResponse, 0, len(releases))
	for i := range releases {
		resp = append(resp, toReleaseResponse(&releases[i]))
	}
	return resp, nil
}

// SetLatestRelease moves the latest flag of a product to releaseID.
func (s *Service) SetLatestRelease(ctx context.Context, productID, releaseID string) (*domain.ReleaseResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	product, err := s.findProduct(ctx, team.ID, productID)
	if err != nil {
		return nil, err
	}

	relID, err := parseID(releaseID)
	if err != nil {
		return nil, err
	}

	var release *domain.Release
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindRelease(ctx, tx, team.ID, product.ID, relID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrReleaseNotFound
		}
		if err := s.repo.ClearLatest(ctx, tx, team.ID, product.ID); err != nil {
			return err
		}
		if err := s.repo.MarkLatest(ctx, tx, team.ID, found.ID); err != nil {
			return err
		}
		found.Latest = true
		release = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("latest release updated",
		zap.String("product_id", product.ID.String()),
		zap.String("release_id", release.ID.String()),
	)

	resp := toReleaseResponse(release)
	return &resp, nil
}

func (s *Service) findProduct(ctx context.Context, teamID snowflake.ID, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, s.db, teamID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) hydrate(ctx context.Context, teamID snowflake.ID, items []*domain.Product) ([]domain.Response, error) {
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	entries, err := s.metadataRepo.ListByOwners(ctx, s.db, teamID, metadatadomain.OwnerProduct, ids)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestReleases(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		item.Metadata = entries[item.ID]
		resp = append(resp, s.toResponse(item, latest[item.ID]))
	}
	return resp, nil
}

func (s *Service) toResponse(p *domain.Product, latest *domain.Release) domain.Response {
	resp := domain.Response{
		ID:        p.ID.String(),
		TeamID:    p.TeamID.String(),
		Name:      p.Name,
		URL:       p.URL,
		Metadata:  p.Metadata,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if latest != nil {
		release := toReleaseResponse(latest)
		resp.LatestRelease = &release
	}
	return resp
}

func toReleaseResponse(r *domain.Release) domain.ReleaseResponse {
	return domain.ReleaseResponse{
		ID:        r.ID.String(),
		ProductID: r.ProductID.String(),
		Version:   r.Version,
		Latest:    r.Latest,
		CreatedAt: r.CreatedAt,
	}
}

func normalizeURL(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domain.ErrInvalidURL
	}
	return &trimmed, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
