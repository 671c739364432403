package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/licensehub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyVerifyTeam      = "license:verify:team:%s"
	keyActivationLock  = "license:activation:lock:%s:%s"
	defaultActivateTTL = 5 * time.Second
)

// VerifyLimiter throttles public license verification per team and guards
// first activation of a license against concurrent verifications. A nil
// *VerifyLimiter allows everything.
type VerifyLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	teamRate  float64
	teamBurst int
	lockTTL   time.Duration
}

type Params struct {
	fx.In

	Config config.Config
	Redis  redis.UniversalClient `optional:"true"`
	Log    *zap.Logger
}

// NewVerifyLimiter returns nil when rate limiting is disabled. Enabling it
// without redis is a configuration error.
func NewVerifyLimiter(p Params) (*VerifyLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if p.Redis == nil {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.VerifyTeamRate <= 0 || limitCfg.VerifyTeamBurst <= 0 {
		return nil, errors.New("verification team rate limit must be positive")
	}
	if p.Log != nil {
		p.Log.Named("ratelimit").Info("verification rate limit enabled",
			zap.Float64("team_rate", limitCfg.VerifyTeamRate),
			zap.Int("team_burst", limitCfg.VerifyTeamBurst),
		)
	}
	return newVerifyLimiter(NewTokenBucket(p.Redis), NewLocker(p.Redis), limitCfg), nil
}

func newVerifyLimiter(bucket *TokenBucket, locker *Locker, cfg config.RateLimitConfig) *VerifyLimiter {
	lockTTL := time.Duration(cfg.ActivationTTL) * time.Second
	if lockTTL <= 0 {
		lockTTL = defaultActivateTTL
	}
	return &VerifyLimiter{
		enabled:   true,
		bucket:    bucket,
		locker:    locker,
		teamRate:  cfg.VerifyTeamRate,
		teamBurst: cfg.VerifyTeamBurst,
		lockTTL:   lockTTL,
	}
}

func (l *VerifyLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowTeam takes one token from the team's verification bucket.
func (l *VerifyLimiter) AllowTeam(ctx context.Context, teamID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, VerifyTeamKey(teamID), l.teamRate, l.teamBurst)
}

func (l *VerifyLimiter) TryLockActivation(ctx context.Context, teamID, licenseID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, ActivationLockKey(teamID, licenseID), l.lockTTL)
}

func (l *VerifyLimiter) ReleaseActivation(ctx context.Context, teamID, licenseID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, ActivationLockKey(teamID, licenseID), token)
}

func VerifyTeamKey(teamID string) string {
	return fmt.Sprintf(keyVerifyTeam, strings.TrimSpace(teamID))
}

func ActivationLockKey(teamID, licenseID string) string {
	return fmt.Sprintf(keyActivationLock, strings.TrimSpace(teamID), strings.TrimSpace(licenseID))
}
