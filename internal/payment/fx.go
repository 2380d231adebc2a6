package payment

import (
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/payment/gateway"
	"github.com/mealora/mealora/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		gateway.NewSandbox,
		service.NewService,
	),
)
