package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/delivery/domain"
	notificationdomain "github.com/mealora/mealora/internal/notification/domain"
	pkgdb "github.com/mealora/mealora/pkg/db"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Notifier notificationdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	notifier notificationdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("delivery.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		notifier: p.Notifier,
	}
}

func (s *Service) CreatePartner(ctx context.Context, req domain.CreatePartnerRequest) (*domain.Partner, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrPartnerNotFound
	}
	customerID, err := snowflake.ParseString(req.CustomerID)
	if err != nil {
		return nil, domain.ErrPartnerNotFound
	}

	partner := &domain.Partner{
		ID:            s.genID.Generate(),
		CustomerID:    customerID,
		Name:          name,
		Phone:         strings.TrimSpace(req.Phone),
		VehicleNumber: strings.TrimSpace(req.VehicleNumber),
		CurrentStatus: domain.PartnerAvailable,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(partner).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrPartnerExists
		}
		return nil, err
	}
	return partner, nil
}

func (s *Service) GetPartner(ctx context.Context, id string) (*domain.Partner, error) {
	return s.findPartner(ctx, s.db, id)
}

func (s *Service) ListPartners(ctx context.Context) ([]*domain.Partner, error) {
	var partners []*domain.Partner
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&partners).Error
	return partners, err
}

func (s *Service) SetPartnerStatus(ctx context.Context, id string, status domain.PartnerStatus) (*domain.Partner, error) {
	switch status {
	case domain.PartnerAvailable, domain.PartnerBusy, domain.PartnerOffline:
	default:
		return nil, domain.ErrInvalidStatus
	}
	partner, err := s.findPartner(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	partner.CurrentStatus = status
	partner.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(partner).Error; err != nil {
		return nil, err
	}
	return partner, nil
}

func (s *Service) CreateDelivery(ctx context.Context, orderID, customerID snowflake.ID) (*domain.Delivery, error) {
	delivery := &domain.Delivery{
		ID:           s.genID.Generate(),
		DailyOrderID: orderID,
		CustomerID:   customerID,
		Status:       domain.DeliveryPending,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *Service) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return s.findDelivery(ctx, s.db, id)
}

func (s *Service) ListByPartner(ctx context.Context, partnerID snowflake.ID) ([]*domain.Delivery, error) {
	var deliveries []*domain.Delivery
	err := s.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Find(&deliveries).Error
	return deliveries, err
}

func (s *Service) ListByOrder(ctx context.Context, orderID snowflake.ID) ([]*domain.Delivery, error) {
	var deliveries []*domain.Delivery
	err := s.db.WithContext(ctx).
		Where("daily_order_id = ?", orderID).
		Find(&deliveries).Error
	return deliveries, err
}

func (s *Service) Assign(ctx context.Context, deliveryID, partnerID string) (*domain.Delivery, error) {
	delivery, err := s.findDelivery(ctx, s.db, deliveryID)
	if err != nil {
		return nil, err
	}
	partner, err := s.findPartner(ctx, s.db, partnerID)
	if err != nil {
		return nil, err
	}
	if partner.CurrentStatus != domain.PartnerAvailable {
		return nil, domain.ErrPartnerBusy
	}
	return delivery, s.assign(ctx, delivery, partner)
}

func (s *Service) AutoAssign(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	delivery, err := s.findDelivery(ctx, s.db, deliveryID)
	if err != nil {
		return nil, err
	}

	var partner domain.Partner
	err = s.db.WithContext(ctx).
		Where("current_status = ?", domain.PartnerAvailable).
		Order("id ASC").
		First(&partner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoPartnerFree
		}
		return nil, err
	}
	return delivery, s.assign(ctx, delivery, &partner)
}

func (s *Service) assign(ctx context.Context, delivery *domain.Delivery, partner *domain.Partner) error {
	now := s.clock.Now()
	delivery.PartnerID = partner.ID
	delivery.Status = domain.DeliveryAssigned
	delivery.AssignedAt = &now
	delivery.UpdatedAt = now
	partner.CurrentStatus = domain.PartnerBusy
	partner.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(delivery).Error; err != nil {
			return err
		}
		if err := tx.Save(partner).Error; err != nil {
			return err
		}
		return s.recountPartner(ctx, tx, partner.ID)
	})
	if err != nil {
		return err
	}

	// The assignment is committed at this point; a notification failure does
	// not undo it.
	s.notifyAfterWrite(ctx, delivery.CustomerID, "Delivery assigned",
		"A delivery partner is on the way", delivery)
	s.notifyAfterWrite(ctx, partner.CustomerID, "New delivery assigned",
		"You have been assigned a delivery", delivery)
	return nil
}

func (s *Service) notifyAfterWrite(ctx context.Context, recipient snowflake.ID, title, body string, delivery *domain.Delivery) {
	if s.notifier == nil || recipient == 0 {
		return
	}
	_, err := s.notifier.Notify(ctx, notificationdomain.Message{
		RecipientID: recipient,
		Event:       notificationdomain.EventOrder,
		Title:       title,
		Body:        body,
		Data:        map[string]any{"delivery_id": delivery.ID.String(), "status": string(delivery.Status)},
	})
	if err != nil {
		s.log.Warn("notification dispatch failed",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) UpdateStatus(ctx context.Context, deliveryID string, status domain.DeliveryStatus) (*domain.Delivery, error) {
	switch status {
	case domain.DeliveryDispatched, domain.DeliveryPickedUp, domain.DeliveryDelivered,
		domain.DeliveryCancelled, domain.DeliveryFailed:
	default:
		return nil, domain.ErrInvalidStatus
	}

	delivery, err := s.findDelivery(ctx, s.db, deliveryID)
	if err != nil {
		return nil, err
	}

	// Replaying the current status must not touch the partner counters.
	if delivery.Status == status {
		return delivery, nil
	}

	now := s.clock.Now()
	delivery.Status = status
	delivery.UpdatedAt = now
	switch status {
	case domain.DeliveryPickedUp:
		delivery.PickedUpAt = &now
	case domain.DeliveryDelivered:
		delivery.DeliveredAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(delivery).Error; err != nil {
			return err
		}
		if delivery.PartnerID == 0 {
			return nil
		}

		var partner domain.Partner
		if err := tx.First(&partner, "id = ?", delivery.PartnerID).Error; err != nil {
			return err
		}
		switch status {
		case domain.DeliveryPickedUp:
			partner.CurrentStatus = domain.PartnerBusy
		case domain.DeliveryDelivered, domain.DeliveryCancelled, domain.DeliveryFailed:
			partner.CurrentStatus = domain.PartnerAvailable
		}
		partner.UpdatedAt = now
		if err := tx.Save(&partner).Error; err != nil {
			return err
		}
		return s.recountPartner(ctx, tx, partner.ID)
	})
	if err != nil {
		return nil, err
	}

	if status == domain.DeliveryDelivered {
		s.notifyAfterWrite(ctx, delivery.CustomerID, "Order delivered", "Your meal has arrived", delivery)
	}
	return delivery, nil
}

// MarkDelayed flags the delivery as delayed and refreshes the partner stats.
func (s *Service) MarkDelayed(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error {
	var deliveries []*domain.Delivery
	if err := tx.WithContext(ctx).Where("daily_order_id = ?", orderID).Find(&deliveries).Error; err != nil {
		return err
	}
	for _, delivery := range deliveries {
		if delivery.Delayed {
			continue
		}
		delivery.Delayed = true
		delivery.UpdatedAt = s.clock.Now()
		if err := tx.Save(delivery).Error; err != nil {
			return err
		}
		if delivery.PartnerID != 0 {
			if err := s.recountPartner(ctx, tx, delivery.PartnerID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecountForOrder refreshes the stats of every partner linked to the order.
// Called from the meal status rollup inside its transaction.
func (s *Service) RecountForOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error {
	var partnerIDs []snowflake.ID
	err := tx.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("daily_order_id = ? AND partner_id <> 0", orderID).
		Distinct().
		Pluck("partner_id", &partnerIDs).Error
	if err != nil {
		return err
	}
	for _, id := range partnerIDs {
		if err := s.recountPartner(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// recountPartner rebuilds the counters from the deliveries table.
func (s *Service) recountPartner(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) error {
	var total, completed, delayed int64
	base := tx.WithContext(ctx).Model(&domain.Delivery{}).Where("partner_id = ?", partnerID)

	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", domain.DeliveryDelivered).Count(&completed).Error; err != nil {
		return err
	}
	if err := base.Session(&gorm.Session{}).Where("delayed = ?", true).Count(&delayed).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&domain.Partner{}).
		Where("id = ?", partnerID).
		Updates(map[string]any{
			"total_deliveries":     total,
			"completed_deliveries": completed,
			"delayed_deliveries":   delayed,
			"updated_at":           s.clock.Now(),
		}).Error
}

func (s *Service) findPartner(ctx context.Context, db *gorm.DB, id string) (*domain.Partner, error) {
	pid, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrPartnerNotFound
	}
	var partner domain.Partner
	if err := db.WithContext(ctx).First(&partner, "id = ?", pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPartnerNotFound
		}
		return nil, err
	}
	return &partner, nil
}

func (s *Service) findDelivery(ctx context.Context, db *gorm.DB, id string) (*domain.Delivery, error) {
	did, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var delivery domain.Delivery
	if err := db.WithContext(ctx).First(&delivery, "id = ?", did).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &delivery, nil
}
