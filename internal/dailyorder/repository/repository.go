package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/dailyorder/domain"
)

type repo struct{}

// Provide returns the gorm-backed daily order repository.
func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrders(ctx context.Context, db *gorm.DB, orders []*domain.DailyOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&orders).Error
}

func (r *repo) InsertMeals(ctx context.Context, db *gorm.DB, meals []*domain.MealSlot) error {
	if len(meals) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&meals).Error
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.DailyOrder, error) {
	var order domain.DailyOrder
	if err := db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindMeal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.MealSlot, error) {
	var meal domain.MealSlot
	if err := db.WithContext(ctx).First(&meal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMealNotFound
		}
		return nil, err
	}
	return &meal, nil
}

func (r *repo) MealsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.MealSlot, error) {
	var meals []domain.MealSlot
	err := db.WithContext(ctx).
		Where("daily_order_id = ?", orderID).
		Order("id ASC").
		Find(&meals).Error
	return meals, err
}

func (r *repo) SaveOrder(ctx context.Context, db *gorm.DB, order *domain.DailyOrder) error {
	return db.WithContext(ctx).Save(order).Error
}

func (r *repo) SaveMeal(ctx context.Context, db *gorm.DB, meal *domain.MealSlot) error {
	return db.WithContext(ctx).Save(meal).Error
}

func (r *repo) DeleteOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Where("daily_order_id = ?", id).Delete(&domain.MealSlot{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&domain.DailyOrder{}, "id = ?", id).Error
}

func (r *repo) OrdersBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*domain.DailyOrder, error) {
	var orders []*domain.DailyOrder
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("date ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repo) OrdersByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*domain.DailyOrder, error) {
	var orders []*domain.DailyOrder
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("date DESC").
		Find(&orders).Error
	return orders, err
}

func (r *repo) OrdersByDate(ctx context.Context, db *gorm.DB, date time.Time) ([]*domain.DailyOrder, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var orders []*domain.DailyOrder
	err := db.WithContext(ctx).
		Where("date >= ? AND date < ?", day, day.AddDate(0, 0, 1)).
		Find(&orders).Error
	return orders, err
}

func (r *repo) UnlockedMealsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.MealSlot, error) {
	var meals []domain.MealSlot
	err := db.WithContext(ctx).
		Joins("JOIN daily_orders ON daily_orders.id = meal_slots.daily_order_id").
		Where("meal_slots.locked = ? AND daily_orders.date <= ?", false, cutoff).
		Find(&meals).Error
	return meals, err
}
