package main

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/config"
	notificationdomain "github.com/mealora/mealora/internal/notification/domain"
	"github.com/mealora/mealora/internal/notification/queue"
	"github.com/mealora/mealora/internal/notification/realtime"
	"github.com/mealora/mealora/pkg/log"
)

// Queue fan-out worker. Drains the notification exchange and pushes each
// message to websocket clients attached to this process. Delivery channels
// beyond the socket (push, email) would hang off the same handler.
func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(realtime.NewHub),
		fx.Provide(queue.NewConsumer),
		fx.Invoke(runConsumer),
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

func runConsumer(lc fx.Lifecycle, consumer *queue.Consumer, hub *realtime.Hub, logger *zap.Logger) {
	logger = logger.Named("worker")

	handle := func(ctx context.Context, msg notificationdomain.Message) error {
		hub.Broadcast(msg.RecipientID, msg.Event, msg)
		logger.Debug("notification fanned out",
			zap.String("recipient_id", msg.RecipientID.String()),
			zap.String("event", string(msg.Event)),
		)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := consumer.Run(runCtx, handle); err != nil && !errors.Is(err, amqp.ErrClosed) && !errors.Is(err, context.Canceled) {
					logger.Error("consumer stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			consumer.Close()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
