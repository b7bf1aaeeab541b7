package mission

import (
	"github.com/smallbiznis/actionboard/internal/mission/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("mission.repository",
	fx.Provide(repository.Provide),
)
