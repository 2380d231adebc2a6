package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/mealora/mealora/internal/cart"
	"github.com/mealora/mealora/internal/catalog"
	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/customer"
	"github.com/mealora/mealora/internal/dailyorder"
	"github.com/mealora/mealora/internal/delivery"
	"github.com/mealora/mealora/internal/metrics"
	"github.com/mealora/mealora/internal/migration"
	"github.com/mealora/mealora/internal/notification"
	"github.com/mealora/mealora/internal/payment"
	"github.com/mealora/mealora/internal/reward"
	"github.com/mealora/mealora/internal/server"
	"github.com/mealora/mealora/internal/settings"
	"github.com/mealora/mealora/internal/subscription"
	"github.com/mealora/mealora/internal/wallet"
	"github.com/mealora/mealora/pkg/db"
	"github.com/mealora/mealora/pkg/log"
)

// HTTP API only. Sweeps run in apps/scheduler, queue fan-out in
// apps/worker.
func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		settings.Module,
		customer.Module,
		catalog.Module,
		wallet.Module,
		cart.Module,
		subscription.Module,
		dailyorder.Module,
		delivery.Module,
		reward.Module,
		payment.Module,
		notification.Module,
		notification.QueueModule,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
