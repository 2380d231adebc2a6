package delivery

import (
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/delivery/service"
)

var Module = fx.Module("delivery.service",
	fx.Provide(service.NewService),
)
