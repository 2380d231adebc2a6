package subscription

import (
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/subscription/repository"
	"github.com/mealora/mealora/internal/subscription/service"
)

var Module = fx.Module("subscription.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
