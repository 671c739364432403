package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/clock"
	customerdomain "github.com/smallbiznis/licensehub/internal/customer/domain"
	"github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/internal/licensecrypto"
	"github.com/smallbiznis/licensehub/internal/licensekey"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/internal/observability/metrics"
	productdomain "github.com/smallbiznis/licensehub/internal/product/domain"
	returnedfieldsdomain "github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"github.com/smallbiznis/licensehub/pkg/db"
	"github.com/smallbiznis/licensehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	issueAttempts     = 2
	maxExpirationDays = 36500
	signingKeyInfo    = "team-signing:"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	ProductRepo  productdomain.Repository
	MetadataRepo metadatadomain.Repository
	Codec        *licensecrypto.Codec
	Formats      licensekey.FormatSource
	Policies     returnedfieldsdomain.Service

	AuditSvc       auditdomain.Service     `optional:"true"`
	Locker         domain.ActivationLocker `optional:"true"`
	Metrics        *metrics.Metrics        `optional:"true"`
	LicenseMetrics *metrics.LicenseMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	customerRepo   customerdomain.Repository
	productRepo    productdomain.Repository
	metadataRepo   metadatadomain.Repository
	codec          *licensecrypto.Codec
	formats        licensekey.FormatSource
	policies       returnedfieldsdomain.Service
	auditSvc       auditdomain.Service
	locker         domain.ActivationLocker
	metrics        *metrics.Metrics
	licenseMetrics *metrics.LicenseMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("license.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		customerRepo:   p.CustomerRepo,
		productRepo:    p.ProductRepo,
		metadataRepo:   p.MetadataRepo,
		codec:          p.Codec,
		formats:        p.Formats,
		policies:       p.Policies,
		auditSvc:       p.AuditSvc,
		locker:         p.Locker,
		metrics:        p.Metrics,
		licenseMetrics: p.LicenseMetrics,
	}
}

// lookupChecker adapts the repository to the generator and counts the
// candidates it was asked about.
type lookupChecker struct {
	repo     domain.Repository
	db       *gorm.DB
	attempts int
}

func (c *lookupChecker) ExistsByLookup(ctx context.Context, teamID snowflake.ID, lookup string) (bool, error) {
	c.attempts++
	return c.repo.ExistsByLookup(ctx, c.db, teamID, lookup)
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreateResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	now := s.clock.Now()
	license, err := buildLicense(req, now)
	if err != nil {
		return nil, err
	}
	license.TeamID = team.ID

	customerIDs, err := s.resolveCustomers(ctx, team.ID, req.CustomerIDs)
	if err != nil {
		return nil, err
	}
	productIDs, err := s.resolveProducts(ctx, team.ID, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	entries, err := metadatadomain.Normalize(req.Metadata)
	if err != nil {
		return nil, err
	}

	var plaintext string
	for attempt := 1; ; attempt++ {
		plaintext, err = s.generate(ctx, team)
		if err != nil {
			s.licenseMetrics.IncError("issue", err)
			if errors.Is(err, licensekey.ErrKeyGenerationExhausted) {
				s.licenseMetrics.IncIssued(metrics.IssueResultExhausted)
			}
			return nil, err
		}

		license.ID = s.genID.Generate()
		license.LicenseKeyLookup = s.codec.LicenseLookup(plaintext, team.String())
		license.LicenseKey, err = s.codec.Encrypt(plaintext)
		if err != nil {
			s.licenseMetrics.IncError("issue", err)
			return nil, err
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(ctx, tx, license); err != nil {
				return err
			}
			if err := s.repo.InsertCustomerLinks(ctx, tx, team.ID, license.ID, customerIDs); err != nil {
				return err
			}
			if err := s.repo.InsertProductLinks(ctx, tx, team.ID, license.ID, productIDs); err != nil {
				return err
			}
			rows := make([]metadatadomain.Row, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, metadatadomain.Row{ID: s.genID.Generate(), Key: entry.Key, Value: entry.Value, CreatedAt: now})
			}
			return s.metadataRepo.Replace(ctx, tx, rows, team.ID, metadatadomain.OwnerLicense, license.ID)
		})
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) {
			s.licenseMetrics.IncError("issue", err)
			return nil, err
		}
		if attempt >= issueAttempts {
			s.licenseMetrics.IncIssued(metrics.IssueResultConflict)
			s.log.Error("license key conflict persisted after retry",
				zap.String("team_id", team.String()),
				zap.Int("attempts", attempt),
			)
			return nil, domain.ErrConflict
		}
		s.licenseMetrics.IncIssued(metrics.IssueResultRetried)
		s.log.Warn("license key lookup collided on insert, retrying",
			zap.String("team_id", team.String()),
			zap.String("constraint", db.ViolatedConstraint(err)),
		)
	}

	s.licenseMetrics.IncIssued(metrics.IssueResultIssued)
	s.metrics.RecordLicenseIssued(ctx, team.String())
	s.audit(ctx, team.ID, auditdomain.ActionLicenseCreate, license.ID, map[string]any{
		"expiration_type": string(license.ExpirationType),
		"customer_count":  len(customerIDs),
		"product_count":   len(productIDs),
	})

	s.log.Info("license issued",
		zap.String("team_id", team.String()),
		zap.String("license_id", license.ID.String()),
	)

	return &domain.CreateResponse{ID: license.ID.String(), LicenseKey: plaintext}, nil
}

func (s *Service) generate(ctx context.Context, team teamcontext.Team) (string, error) {
	checker := &lookupChecker{repo: s.repo, db: s.db}
	gen := licensekey.NewGenerator(licensekey.GeneratorConfig{
		Formats: s.formats,
		Hasher:  s.codec,
		Checker: checker,
		Log:     s.log,
	})
	key, err := gen.Generate(ctx, team)
	s.licenseMetrics.ObserveKeyAttempts(checker.attempts)
	return key, err
}

func buildLicense(req domain.CreateRequest, now time.Time) (*domain.License, error) {
	if err := checkLimit(req.IPLimit); err != nil {
		return nil, err
	}
	if err := checkLimit(req.Seats); err != nil {
		return nil, err
	}

	expType := domain.ExpirationType(strings.ToUpper(strings.TrimSpace(req.ExpirationType)))
	if expType == "" {
		expType = domain.ExpirationNever
	}
	start := domain.ExpirationStart(strings.ToUpper(strings.TrimSpace(req.ExpirationStart)))
	if start == "" {
		start = domain.StartCreation
	}
	if start != domain.StartCreation && start != domain.StartActivation {
		return nil, domain.ErrInvalidExpiration
	}

	license := &domain.License{
		IPLimit:         req.IPLimit,
		Seats:           req.Seats,
		ExpirationType:  expType,
		ExpirationStart: domain.StartCreation,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch expType {
	case domain.ExpirationNever:
	case domain.ExpirationDate:
		if req.ExpirationDate == nil || req.ExpirationDate.IsZero() {
			return nil, domain.ErrInvalidExpiration
		}
		date := req.ExpirationDate.UTC()
		license.ExpirationDate = &date
	case domain.ExpirationDuration:
		if req.ExpirationDays == nil || *req.ExpirationDays <= 0 || *req.ExpirationDays > maxExpirationDays {
			return nil, domain.ErrInvalidExpiration
		}
		days := *req.ExpirationDays
		license.ExpirationDays = &days
		license.ExpirationStart = start
		if start == domain.StartCreation {
			date := expiresAt(now, days)
			license.ExpirationDate = &date
		}
	default:
		return nil, domain.ErrInvalidExpiration
	}

	return license, nil
}

func checkLimit(value *int) error {
	if value != nil && *value <= 0 {
		return domain.ErrInvalidLimit
	}
	return nil
}

func expiresAt(from time.Time, days int) time.Time {
	return from.UTC().AddDate(0, 0, days)
}

func (s *Service) resolveCustomers(ctx context.Context, teamID snowflake.ID, raw []string) ([]snowflake.ID, error) {
	ids, err := parseIDs(raw, domain.ErrInvalidCustomer)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	found, err := s.customerRepo.FindByIDs(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, domain.ErrInvalidCustomer
	}
	return ids, nil
}

func (s *Service) resolveProducts(ctx context.Context, teamID snowflake.ID, raw []string) ([]snowflake.ID, error) {
	ids, err := parseIDs(raw, domain.ErrInvalidProduct)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	found, err := s.productRepo.FindByIDs(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, domain.ErrInvalidProduct
	}
	return ids, nil
}

// parseIDs parses and de-duplicates ids, keeping their first-seen order.
func parseIDs(raw []string, invalid error) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(raw))
	seen := make(map[snowflake.ID]struct{}, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, invalid
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidTeam
	}

	filter := domain.ListFilter{Suspended: req.Suspended}
	if value := strings.TrimSpace(req.CustomerID); value != "" {
		id, err := parseID(value)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.CustomerID = id
	}
	if value := strings.TrimSpace(req.ProductID); value != "" {
		id, err := parseID(value)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.ProductID = id
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	pageSize := page.Limit()
	page.PageSize = pageSize

	items, err := s.repo.List(ctx, s.db, team.ID, filter, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(license *domain.License) string {
		return pagination.KeysetToken(license.ID, license.CreatedAt)
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	licenses, err := s.hydrate(ctx, team.ID, items)
	if err != nil {
		return domain.ListResponse{}, err
	}
	return domain.ListResponse{PageInfo: *pageInfo, Licenses: licenses}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	license, err := s.find(ctx, team.ID, id)
	if err != nil {
		return nil, err
	}

	resp, err := s.hydrate(ctx, team.ID, []*domain.License{license})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

// Reveal decrypts the stored key for an authorized dashboard user.
func (s *Service) Reveal(ctx context.Context, id string) (*domain.RevealResponse, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	license, err := s.find(ctx, team.ID, id)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.codec.Decrypt(license.LicenseKey)
	if err != nil {
		s.licenseMetrics.IncError("reveal", err)
		s.log.Error("license key decryption failed",
			zap.String("team_id", team.String()),
			zap.String("license_id", license.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordReveal(ctx, team.String())
	s.audit(ctx, team.ID, auditdomain.ActionLicenseReveal, license.ID, nil)

	return &domain.RevealResponse{ID: license.ID.String(), LicenseKey: plaintext}, nil
}

func (s *Service) SetSuspended(ctx context.Context, id string, suspended bool) (*domain.Response, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	licenseID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateSuspended(ctx, s.db, team.ID, licenseID, suspended, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrNotFound
	}

	s.audit(ctx, team.ID, auditdomain.ActionLicenseSuspend, licenseID, map[string]any{"suspended": suspended})

	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return domain.ErrInvalidTeam
	}

	licenseID, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.metadataRepo.DeleteByOwner(ctx, tx, team.ID, metadatadomain.OwnerLicense, licenseID); err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, tx, team.ID, licenseID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, team.ID, auditdomain.ActionLicenseDelete, licenseID, nil)
	return nil
}

// SigningSecret returns the team key used to answer verification challenges.
func (s *Service) SigningSecret(ctx context.Context) (string, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return "", domain.ErrInvalidTeam
	}
	key, err := s.signingKey(team)
	if err != nil {
		return "", err
	}
	return encodeSecret(key), nil
}

func (s *Service) signingKey(team teamcontext.Team) ([]byte, error) {
	return s.codec.DeriveKey(signingKeyInfo+team.String(), 0)
}

func (s *Service) find(ctx context.Context, teamID snowflake.ID, id string) (*domain.License, error) {
	licenseID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	license, err := s.repo.FindByID(ctx, s.db, teamID, licenseID)
	if err != nil {
		return nil, err
	}
	if license == nil {
		return nil, domain.ErrNotFound
	}
	return license, nil
}

func (s *Service) hydrate(ctx context.Context, teamID snowflake.ID, items []*domain.License) ([]domain.Response, error) {
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	customers, err := s.repo.CustomerIDs(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ProductIDs(ctx, s.db, teamID, ids)
	if err != nil {
		return nil, err
	}
	entries, err := s.metadataRepo.ListByOwners(ctx, s.db, teamID, metadatadomain.OwnerLicense, ids)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.Response{
			ID:              item.ID.String(),
			TeamID:          item.TeamID.String(),
			IPLimit:         item.IPLimit,
			Seats:           item.Seats,
			ExpirationType:  item.ExpirationType,
			ExpirationStart: item.ExpirationStart,
			ExpirationDate:  item.ExpirationDate,
			ExpirationDays:  item.ExpirationDays,
			Suspended:       item.Suspended,
			ActivatedAt:     item.ActivatedAt,
			CustomerIDs:     idStrings(customers[item.ID]),
			ProductIDs:      idStrings(products[item.ID]),
			Metadata:        entries[item.ID],
			CreatedAt:       item.CreatedAt,
			UpdatedAt:       item.UpdatedAt,
		})
	}
	return resp, nil
}

func (s *Service) audit(ctx context.Context, teamID snowflake.ID, action string, licenseID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := licenseID.String()
	if err := s.auditSvc.AuditLog(ctx, &teamID, "", nil, action, "license", &targetID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func idStrings(ids []snowflake.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
