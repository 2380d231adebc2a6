// Package queue carries deferred notification fan-out over RabbitMQ. The
// producer is an injected dependency of the notification service; the consumer
// runs in the worker process.
package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/notification/domain"
)

// Producer publishes notification messages to the topic exchange.
type Producer struct {
	log      *zap.Logger
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewProducer(cfg *config.Config, log *zap.Logger) (*Producer, error) {
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

	return &Producer{
		log:      log.Named("notification.producer"),
		conn:     conn,
		ch:       ch,
		exchange: cfg.NotificationExchange,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, msg domain.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	routingKey := "notification." + string(msg.Event)
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return err
	}

	p.log.Debug("notification queued",
		zap.String("recipient_id", msg.RecipientID.String()),
		zap.String("routing_key", routingKey),
	)
	return nil
}

func (p *Producer) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
