package cart

import (
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/cart/service"
)

var Module = fx.Module("cart.service",
	fx.Provide(service.NewService),
)
