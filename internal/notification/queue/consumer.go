package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/notification/domain"
)

// Consumer drains the notification queue in the worker process, persisting
// and broadcasting each message.
type Consumer struct {
	log   *zap.Logger
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewConsumer(cfg *config.Config, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(cfg.NotificationExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(cfg.NotificationQueue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, "notification.#", cfg.NotificationExchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{
		log:   log.Named("notification.consumer"),
		conn:  conn,
		ch:    ch,
		queue: q.Name,
	}, nil
}

// Run consumes until the context is cancelled or the channel closes. Handler
// errors nack without requeue; a poison message must not wedge the queue.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, domain.Message) error) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}

			var msg domain.Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				c.log.Warn("malformed queue message", zap.Error(err))
				d.Nack(false, false)
				continue
			}
			if err := handle(ctx, msg); err != nil {
				c.log.Error("notification handler failed",
					zap.String("recipient_id", msg.RecipientID.String()),
					zap.Error(err),
				)
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
