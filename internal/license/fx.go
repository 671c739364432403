package license

import (
	"github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/internal/license/repository"
	"github.com/smallbiznis/licensehub/internal/license/service"
	"github.com/smallbiznis/licensehub/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("license.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideActivationLocker),
	fx.Provide(service.New),
)

func provideActivationLocker(limiter *ratelimit.VerifyLimiter) domain.ActivationLocker {
	if limiter == nil {
		return nil
	}
	return limiter
}
