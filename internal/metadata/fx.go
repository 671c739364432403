package metadata

import (
	"github.com/smallbiznis/licensehub/internal/metadata/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("metadata.repository",
	fx.Provide(repository.Provide),
)
