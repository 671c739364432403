package returnedfields

import (
	"github.com/smallbiznis/licensehub/internal/returnedfields/repository"
	"github.com/smallbiznis/licensehub/internal/returnedfields/service"
	"go.uber.org/fx"
)

var Module = fx.Module("returnedfields.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
