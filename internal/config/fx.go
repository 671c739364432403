package config

import (
	"github.com/smallbiznis/licensehub/internal/licensekey"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewKeyFormatHolder),
	fx.Provide(func(h *KeyFormatHolder) licensekey.FormatSource { return h }),
)
