package apikey

import (
	"github.com/smallbiznis/licensehub/internal/apikey/domain"
	"github.com/smallbiznis/licensehub/internal/apikey/repository"
	"github.com/smallbiznis/licensehub/internal/apikey/service"
	"github.com/smallbiznis/licensehub/internal/licensecrypto"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(codec *licensecrypto.Codec) domain.Hasher { return codec }),
	fx.Provide(service.New),
)
