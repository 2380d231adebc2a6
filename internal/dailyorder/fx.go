package dailyorder

import (
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/dailyorder/repository"
	"github.com/mealora/mealora/internal/dailyorder/service"
)

var Module = fx.Module("dailyorder.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
