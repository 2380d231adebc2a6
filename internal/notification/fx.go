package notification

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/notification/domain"
	"github.com/mealora/mealora/internal/notification/queue"
	"github.com/mealora/mealora/internal/notification/realtime"
	"github.com/mealora/mealora/internal/notification/service"
)

var Module = fx.Module("notification.service",
	fx.Provide(
		realtime.NewHub,
		func(hub *realtime.Hub) domain.Broadcaster { return hub },
		service.NewService,
	),
)

// QueueModule adds the RabbitMQ producer. Processes that run without a broker
// leave it out; the notification service treats the publisher as optional.
var QueueModule = fx.Module("notification.queue",
	fx.Provide(newPublisher),
)

func newPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (domain.Publisher, error) {
	producer, err := queue.NewProducer(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			producer.Close()
			return nil
		},
	})
	return producer, nil
}
