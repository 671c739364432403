package team

import (
	"github.com/smallbiznis/licensehub/internal/team/repository"
	"github.com/smallbiznis/licensehub/internal/team/service"
	"go.uber.org/fx"
)

var Module = fx.Module("team.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
