package season

import (
	"github.com/smallbiznis/actionboard/internal/season/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("season.repository",
	fx.Provide(repository.Provide),
)
