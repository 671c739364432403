package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/lib/pq"
	"github.com/smallbiznis/licensehub/internal/cache"
	"github.com/smallbiznis/licensehub/internal/clock"
	"github.com/smallbiznis/licensehub/internal/config"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	"github.com/smallbiznis/licensehub/internal/observability/metrics"
	"github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"github.com/smallbiznis/licensehub/internal/teamcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPolicyTTL = 30 * time.Second
	maxAllowKeys     = metadatadomain.MaxEntries
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Config  config.Config           `optional:"true"`
	Bus     *cache.PolicyBus        `optional:"true"`
	Metrics *metrics.LicenseMetrics `optional:"true"`
	LC      fx.Lifecycle            `optional:"true"`
}

// Service caches policies per team for the verification path. Without an
// invalidation bus only absent policies are cached: a stale absent policy
// discloses nothing, a stale present one could disclose a revoked field.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.LicenseMetrics
	bus     *cache.Bus

	cache *ristretto.Cache[int64, *domain.Policy]
	ttl   time.Duration

	// generations are bumped on every invalidation; a load started under an
	// older generation is not cached
	mu          sync.Mutex
	generations map[int64]uint64
}

func New(p Params) (domain.Service, error) {
	cacheCfg := p.Config.Cache
	policies, err := ristretto.NewCache(&ristretto.Config[int64, *domain.Policy]{
		NumCounters: positiveOr(cacheCfg.PolicyNumCounters, 1e5),
		MaxCost:     positiveOr(cacheCfg.PolicyMaxCost, 1e4),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create policy cache: %w", err)
	}

	ttl := time.Duration(cacheCfg.PolicyTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultPolicyTTL
	}
	s := &Service{
		db:          p.DB,
		log:         p.Log.Named("returnedfields.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		metrics:     p.Metrics,
		cache:       policies,
		ttl:         ttl,
		generations: map[int64]uint64{},
	}
	if p.Bus != nil {
		s.bus = p.Bus.Bus
	}

	if p.LC != nil {
		var stop func() error
		p.LC.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if s.bus == nil {
					return nil
				}
				var err error
				if stop, err = s.listen(ctx); err != nil {
					// without invalidations present policies must not be cached
					s.log.Warn("policy invalidation unavailable", zap.Error(err))
					s.bus = nil
				}
				return nil
			},
			OnStop: func(context.Context) error {
				policies.Close()
				if stop != nil {
					return stop()
				}
				return nil
			},
		})
	}
	return s, nil
}

// listen drops cached policies that another replica changed.
func (s *Service) listen(ctx context.Context) (func() error, error) {
	return s.bus.Subscribe(ctx, func(key string) {
		teamID, err := snowflake.ParseString(key)
		if err != nil {
			s.log.Warn("ignoring malformed policy invalidation", zap.String("key", key))
			return
		}
		s.invalidate(teamID)
	})
}

func (s *Service) Get(ctx context.Context) (*domain.Policy, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}
	return s.repo.Get(ctx, s.db, team.ID)
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Policy, error) {
	team, ok := teamcontext.FromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTeam
	}

	licenseKeys, err := normalizeKeys(req.LicenseMetadataKeys)
	if err != nil {
		return nil, err
	}
	customerKeys, err := normalizeKeys(req.CustomerMetadataKeys)
	if err != nil {
		return nil, err
	}
	productKeys, err := normalizeKeys(req.ProductMetadataKeys)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	policy := &domain.Policy{
		TeamID:                 team.ID,
		LicenseIPLimit:         req.LicenseIPLimit,
		LicenseSeats:           req.LicenseSeats,
		LicenseExpirationType:  req.LicenseExpirationType,
		LicenseExpirationStart: req.LicenseExpirationStart,
		LicenseExpirationDate:  req.LicenseExpirationDate,
		LicenseExpirationDays:  req.LicenseExpirationDays,
		LicenseMetadataKeys:    licenseKeys,
		CustomerEmail:          req.CustomerEmail,
		CustomerFullName:       req.CustomerFullName,
		CustomerUsername:       req.CustomerUsername,
		CustomerMetadataKeys:   customerKeys,
		ProductName:            req.ProductName,
		ProductURL:             req.ProductURL,
		ProductLatestRelease:   req.ProductLatestRelease,
		ProductMetadataKeys:    productKeys,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.repo.Upsert(ctx, s.db, policy); err != nil {
		return nil, err
	}
	s.invalidate(team.ID)
	if s.bus != nil {
		if err := s.bus.Publish(ctx, team.String()); err != nil {
			// other replicas fall back to the cache ttl
			s.log.Warn("policy invalidation not published", zap.String("team_id", team.String()), zap.Error(err))
		}
	}

	s.log.Info("returned fields policy updated", zap.String("team_id", team.String()))

	return s.repo.Get(ctx, s.db, team.ID)
}

// Policy returns the team's policy from cache, loading it on a miss. Absent
// policies are always cached so unconfigured teams do not hit the database on
// every verification; present ones only when invalidations are delivered.
func (s *Service) Policy(ctx context.Context, teamID snowflake.ID) (*domain.Policy, error) {
	key := int64(teamID)
	if policy, found := s.cache.Get(key); found {
		s.metrics.IncPolicyCache(metrics.CacheResultHit)
		return policy, nil
	}
	s.metrics.IncPolicyCache(metrics.CacheResultMiss)

	gen := s.generation(key)
	policy, err := s.repo.Get(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	s.store(key, gen, policy)
	return policy, nil
}

func (s *Service) generation(key int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

// store caches policy unless the team was invalidated since gen was read.
func (s *Service) store(key int64, gen uint64, policy *domain.Policy) {
	if policy != nil && s.bus == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key] != gen {
		return
	}
	s.cache.SetWithTTL(key, policy, 1, s.ttl)
	s.cache.Wait()
}

func (s *Service) invalidate(teamID snowflake.ID) {
	key := int64(teamID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	s.cache.Del(key)
}

func positiveOr(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

func normalizeKeys(keys []string) (pq.StringArray, error) {
	out := make(pq.StringArray, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" || len(key) > metadatadomain.MaxKeyLength {
			return nil, domain.ErrInvalidMetadataKey
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	if len(out) > maxAllowKeys {
		return nil, domain.ErrTooManyKeys
	}
	return out, nil
}
