package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/customer/domain"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"github.com/smallbiznis/licensehub/pkg/validate"
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
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	metadataRepo metadatadomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("customer.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		metadataRepo: p.MetadataRepo,
	}
}

// fieldErrors maps request fields to the sentinel the API reports.
var fieldErrors = map[string]error{
	"email":     domain.ErrInvalidEmail,
	"full_name": domain.ErrInvalidName,
	"username":  domain.ErrInvalidUser,
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return domain.Customer{}, domain.ErrInvalidTeam
	}

	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(req); err != nil {
		return domain.Customer{}, validate.Field(err, fieldErrors)
	}
	entries, err := metadatadomain.Normalize(req.Metadata)
	if err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		TeamID:    team.ID,
		Email:     optional(req.Email),
		FullName:  optional(req.FullName),
		Username:  optional(req.Username),
		Metadata:  entries,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &customer); err != nil {
			return err
		}
		return s.metadataRepo.Replace(ctx, tx, s.metadataRows(entries, now), team.ID, metadatadomain.OwnerCustomer, customer.ID)
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.log.Debug("customer created", zap.String("team_id", team.String()), zap.String("customer_id", customer.ID.String()))
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return domain.ListCustomerResponse{}, domain.ErrInvalidTeam
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	page.PageSize = page.Limit()
	rows, err := s.repo.List(ctx, s.db, team.ID, domain.ListCustomerFilter{
		Email:    strings.TrimSpace(req.Email),
		Username: strings.TrimSpace(req.Username),
	}, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, page.PageSize, customerCursor)
	if len(rows) > page.PageSize {
		rows = rows[:page.PageSize]
	}
	if err := s.attachMetadata(ctx, team.ID, rows); err != nil {
		return domain.ListCustomerResponse{}, err
	}

	out := domain.ListCustomerResponse{PageInfo: *pageInfo, Customers: make([]domain.Customer, 0, len(rows))}
	for _, row := range rows {
		out.Customers = append(out.Customers, *row)
	}
	return out, nil
}

func customerCursor(c *domain.Customer) string {
	return pagination.KeysetToken(c.ID, c.CreatedAt)
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return domain.Customer{}, domain.ErrInvalidTeam
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, team.ID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	if err := s.attachMetadata(ctx, team.ID, []*domain.Customer{item}); err != nil {
		return domain.Customer{}, err
	}
	return *item, nil
}

func (s *Service) attachMetadata(ctx context.Context, teamID snowflake.ID, items []*domain.Customer) error {
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	entries, err := s.metadataRepo.ListByOwners(ctx, s.db, teamID, metadatadomain.OwnerCustomer, ids)
	if err != nil {
		return err
	}
	for _, item := range items {
		item.Metadata = entries[item.ID]
	}
	return nil
}

func (s *Service) metadataRows(entries []metadatadomain.Entry, now time.Time) []metadatadomain.Row {
	rows := make([]metadatadomain.Row, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, metadatadomain.Row{
			ID:        s.genID.Generate(),
			Key:       entry.Key,
			Value:     entry.Value,
			CreatedAt: now,
		})
	}
	return rows
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
