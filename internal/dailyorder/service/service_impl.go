package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/dailyorder/domain"
	deliverydomain "github.com/mealora/mealora/internal/delivery/domain"
	notificationdomain "github.com/mealora/mealora/internal/notification/domain"
	rewarddomain "github.com/mealora/mealora/internal/reward/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Subscriptions subscriptiondomain.Service
	Partners      deliverydomain.Service
	Settings      settingsdomain.Service
	Rewards       rewarddomain.Service       `optional:"true"`
	Notifier      notificationdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	subs     subscriptiondomain.Service
	partners deliverydomain.Service
	settings settingsdomain.Service
	rewards  rewarddomain.Service
	notifier notificationdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("dailyorder.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		subs:     p.Subscriptions,
		partners: p.Partners,
		settings: p.Settings,
		rewards:  p.Rewards,
		notifier: p.Notifier,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.DailyOrder, *[]domain.MealSlot, error) {
	oid, err := snowflake.ParseString(id)
	if err != nil {
		return nil, nil, domain.ErrNotFound
	}
	order, err := s.repo.FindOrder(ctx, s.db, oid)
	if err != nil {
		return nil, nil, err
	}
	meals, err := s.repo.MealsByOrder(ctx, s.db, oid)
	if err != nil {
		return nil, nil, err
	}
	return order, &meals, nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]*domain.DailyOrder, error) {
	return s.repo.OrdersBySubscription(ctx, s.db, subscriptionID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*domain.DailyOrder, error) {
	return s.repo.OrdersByCustomer(ctx, s.db, customerID)
}

func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]*domain.DailyOrder, error) {
	return s.repo.OrdersByDate(ctx, s.db, date)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	oid, err := snowflake.ParseString(id)
	if err != nil {
		return domain.ErrNotFound
	}
	if _, err := s.repo.FindOrder(ctx, s.db, oid); err != nil {
		return err
	}
	return s.repo.DeleteOrder(ctx, s.db, oid)
}

// UpdateMealStatus applies one status transition to one meal, re-derives the
// order status and keeps the subscription and partner counters in step, all
// in one transaction. Applying the current status again changes nothing.
func (s *Service) UpdateMealStatus(ctx context.Context, mealID string, status domain.MealStatus) (*domain.DailyOrder, error) {
	if !domain.ValidTransition(status) {
		return nil, domain.ErrInvalidStatus
	}
	mid, err := snowflake.ParseString(mealID)
	if err != nil {
		return nil, domain.ErrMealNotFound
	}

	now := s.clock.Now()
	var (
		order           *domain.DailyOrder
		becameDelivered bool
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meal, err := s.repo.FindMeal(ctx, tx, mid)
		if err != nil {
			return err
		}
		order, err = s.repo.FindOrder(ctx, tx, meal.DailyOrderID)
		if err != nil {
			return err
		}

		// Idempotency guard. Without it a replayed delivered transition
		// would double-count the subscription and partner counters.
		if meal.Status == status {
			return nil
		}

		meal.Status = status
		meal.StatusHistory = append(meal.StatusHistory, domain.StatusChange{Status: status, ChangedAt: now})
		if status == domain.MealDelayed {
			meal.DelayMinutes = int(domain.MealDelay(*meal, now).Minutes())
		}
		meal.UpdatedAt = now
		if err := s.repo.SaveMeal(ctx, tx, meal); err != nil {
			return err
		}

		meals, err := s.repo.MealsByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		prev := order.OrderStatus
		order.OrderStatus = domain.Rollup(meals)
		if order.OrderStatus == domain.OrderDelivered && prev != domain.OrderDelivered {
			becameDelivered = true
			delay := domain.MaxDelay(meals, now)
			order.DelaySeconds = float64(int(delay.Seconds()*100)) / 100
		}
		order.UpdatedAt = now
		if err := s.repo.SaveOrder(ctx, tx, order); err != nil {
			return err
		}

		if status == domain.MealDelivered {
			if err := s.subs.RecordDelivery(ctx, tx, order.SubscriptionID); err != nil {
				return err
			}
		}
		if status == domain.MealDelayed {
			if err := s.partners.MarkDelayed(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		return s.partners.RecountForOrder(ctx, tx, order.ID)
	})
	if err != nil {
		return nil, err
	}

	// Points for the day are granted once, when the order becomes fully
	// delivered. The grant sits outside the transaction; a failure is logged
	// and the order write stands.
	if becameDelivered && s.rewards != nil {
		if _, err := s.rewards.EarnForDelivery(ctx, order.CustomerID, order.ID.String()); err != nil {
			s.log.Warn("reward grant failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	s.notify(ctx, order.CustomerID, fmt.Sprintf("Meal %s", status),
		fmt.Sprintf("Order for %s is now %s", order.Date.Format("2006-01-02"), order.OrderStatus),
		map[string]any{"order_id": order.ID.String()})

	return order, nil
}

// BulkUpdateStatus pushes one status to every meal of the order. The order
// status comes from the fixed bulk lookup table, not the precedence rollup.
func (s *Service) BulkUpdateStatus(ctx context.Context, orderID string, status domain.MealStatus) (*domain.DailyOrder, error) {
	oid, err := snowflake.ParseString(orderID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now()
	var order *domain.DailyOrder

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.repo.FindOrder(ctx, tx, oid)
		if err != nil {
			return err
		}
		meals, err := s.repo.MealsByOrder(ctx, tx, oid)
		if err != nil {
			return err
		}
		for i := range meals {
			meal := &meals[i]
			if meal.Status == status {
				continue
			}
			meal.Status = status
			meal.StatusHistory = append(meal.StatusHistory, domain.StatusChange{Status: status, ChangedAt: now})
			meal.UpdatedAt = now
			if err := s.repo.SaveMeal(ctx, tx, meal); err != nil {
				return err
			}
			if status == domain.MealDelivered {
				if err := s.subs.RecordDelivery(ctx, tx, order.SubscriptionID); err != nil {
					return err
				}
			}
		}

		order.OrderStatus = domain.BulkRollup(status)
		order.UpdatedAt = now
		if err := s.repo.SaveOrder(ctx, tx, order); err != nil {
			return err
		}
		return s.partners.RecountForOrder(ctx, tx, order.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// LockDue locks every meal whose order date falls inside the configured
// change window. Scheduler sweep.
func (s *Service) LockDue(ctx context.Context) (int, error) {
	window := s.settings.MealLockWindow(ctx)
	cutoff := s.clock.Now().Add(window)

	meals, err := s.repo.UnlockedMealsBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	var n int
	for i := range meals {
		meal := &meals[i]
		meal.Locked = true
		meal.UpdatedAt = s.clock.Now()
		if err := s.repo.SaveMeal(ctx, s.db, meal); err != nil {
			s.log.Error("meal lock failed", zap.String("meal_id", meal.ID.String()), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) notify(ctx context.Context, recipient snowflake.ID, title, body string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, notificationdomain.Message{
		RecipientID: recipient,
		Event:       notificationdomain.EventOrder,
		Title:       title,
		Body:        body,
		Data:        data,
	}); err != nil {
		s.log.Warn("notification dispatch failed", zap.Error(err))
	}
}
