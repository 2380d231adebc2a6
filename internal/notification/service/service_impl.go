package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/notification/domain"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Broadcast domain.Broadcaster `optional:"true"`
	Queue     domain.Publisher   `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	broadcast domain.Broadcaster
	queue     domain.Publisher
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("notification.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		broadcast: p.Broadcast,
		queue:     p.Queue,
	}
}

// Notify persists the notification, then pushes it live and queues the
// deferred fan-out. Only the persist can fail the call; the channels past it
// are best effort.
func (s *Service) Notify(ctx context.Context, msg domain.Message) (*domain.Notification, error) {
	notification := &domain.Notification{
		ID:          s.genID.Generate(),
		RecipientID: msg.RecipientID,
		Event:       msg.Event,
		Title:       msg.Title,
		Body:        msg.Body,
		Data:        datatypes.JSONMap(msg.Data),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, err
	}

	if s.broadcast != nil {
		s.broadcast.Broadcast(msg.RecipientID, msg.Event, notification)
	}
	if s.queue != nil {
		if err := s.queue.Publish(ctx, msg); err != nil {
			s.log.Warn("queue publish failed",
				zap.String("recipient_id", msg.RecipientID.String()),
				zap.Error(err),
			)
		}
	}
	return notification, nil
}

func (s *Service) ListByRecipient(ctx context.Context, recipientID snowflake.ID) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

func (s *Service) MarkRead(ctx context.Context, recipientID snowflake.ID, id string) (*domain.Notification, error) {
	notification, err := s.owned(ctx, recipientID, id)
	if err != nil {
		return nil, err
	}
	if notification.Read {
		return notification, nil
	}
	notification.Read = true
	if err := s.db.WithContext(ctx).Save(notification).Error; err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *Service) Delete(ctx context.Context, recipientID snowflake.ID, id string) error {
	notification, err := s.owned(ctx, recipientID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(notification).Error
}

func (s *Service) owned(ctx context.Context, recipientID snowflake.ID, id string) (*domain.Notification, error) {
	nid, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var notification domain.Notification
	err = s.db.WithContext(ctx).
		First(&notification, "id = ? AND recipient_id = ?", nid, recipientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &notification, nil
}
