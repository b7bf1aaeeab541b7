package artifact

import (
	"github.com/smallbiznis/actionboard/internal/artifact/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("artifact.repository",
	fx.Provide(repository.Provide),
)
