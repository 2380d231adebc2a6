package reward

import (
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/reward/service"
)

var Module = fx.Module("reward.service",
	fx.Provide(service.NewService),
)
