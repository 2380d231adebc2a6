// Package domain contains daily orders, their meal slots and the status rollup.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MealStatus tracks one meal slot through preparation and delivery.
type MealStatus string

const (
	MealScheduled      MealStatus = "scheduled"
	MealPreparing      MealStatus = "preparing"
	MealPrepared       MealStatus = "prepared"
	MealOutForDelivery MealStatus = "out_for_delivery"
	MealDelivered      MealStatus = "delivered"
	MealDelayed        MealStatus = "delayed"
	MealCancelled      MealStatus = "cancelled"
)

// OrderStatus is always derived from the meal statuses, never set directly.
type OrderStatus string

const (
	OrderPending            OrderStatus = "pending"
	OrderConfirmed          OrderStatus = "confirmed"
	OrderPreparing          OrderStatus = "preparing"
	OrderPrepared           OrderStatus = "prepared"
	OrderOutForDelivery     OrderStatus = "out_for_delivery"
	OrderDelivered          OrderStatus = "delivered"
	OrderDelayed            OrderStatus = "delayed"
	OrderPartiallyDelivered OrderStatus = "partially_delivered"
	OrderPartiallyRefunded  OrderStatus = "partially_refunded"
	OrderCancelled          OrderStatus = "cancelled"
)

// Slot names a meal of the day.
type Slot string

const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
)

// StatusChange is one entry of a meal's status history.
type StatusChange struct {
	Status    MealStatus `json:"status"`
	ChangedAt time.Time  `json:"changed_at"`
}

// DailyOrder is one calendar day of a subscription.
type DailyOrder struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	CustomerID     snowflake.ID `gorm:"not null;index" json:"customer_id"`
	Date           time.Time    `gorm:"not null;index" json:"date"`
	OrderStatus    OrderStatus  `gorm:"type:text;not null;default:pending" json:"order_status"`
	PaymentStatus  string       `gorm:"type:text;not null;default:paid" json:"payment_status"`
	DelaySeconds   float64      `gorm:"not null;default:0" json:"delay_seconds"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DailyOrder) TableName() string { return "daily_orders" }

// MealSlot is one meal of a daily order.
type MealSlot struct {
	ID                   snowflake.ID                      `gorm:"primaryKey" json:"id"`
	DailyOrderID         snowflake.ID                      `gorm:"not null;index" json:"daily_order_id"`
	Slot                 Slot                              `gorm:"type:text;not null" json:"slot"`
	ProductID            snowflake.ID                      `gorm:"index" json:"product_id"`
	Quantity             int                               `gorm:"not null;default:1" json:"quantity"`
	Price                int64                             `gorm:"not null;default:0" json:"price"`
	CostPrice            int64                             `gorm:"not null;default:0" json:"cost_price"`
	Status               MealStatus                        `gorm:"type:text;not null;default:scheduled" json:"status"`
	StatusHistory        datatypes.JSONSlice[StatusChange] `gorm:"type:jsonb" json:"status_history"`
	ExpectedDeliveryTime *time.Time                        `gorm:"" json:"expected_delivery_time,omitempty"`
	DelayMinutes         int                               `gorm:"not null;default:0" json:"delay_minutes"`
	Locked               bool                              `gorm:"not null;default:false" json:"locked"`
	CreatedAt            time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MealSlot) TableName() string { return "meal_slots" }

var (
	ErrNotFound      = errors.New("order_not_found")
	ErrMealNotFound  = errors.New("meal_not_found")
	ErrMealLocked    = errors.New("meal_locked")
	ErrInvalidStatus = errors.New("invalid_meal_status")
)

type Service interface {
	GetByID(ctx context.Context, id string) (*DailyOrder, *[]MealSlot, error)
	ListBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]*DailyOrder, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*DailyOrder, error)
	ListByDate(ctx context.Context, date time.Time) ([]*DailyOrder, error)
	Delete(ctx context.Context, id string) error

	// UpdateMealStatus applies one transition to one meal and re-derives the
	// order status. Applying the same target status twice is a no-op.
	UpdateMealStatus(ctx context.Context, mealID string, status MealStatus) (*DailyOrder, error)

	// BulkUpdateStatus pushes one status to every meal of an order and maps
	// the incoming token straight to an order status.
	BulkUpdateStatus(ctx context.Context, orderID string, status MealStatus) (*DailyOrder, error)

	// LockDue locks meals whose change window has closed. Scheduler sweep.
	LockDue(ctx context.Context) (int, error)
}

// Repository gives transactional access to order and meal rows.
type Repository interface {
	InsertOrders(ctx context.Context, db *gorm.DB, orders []*DailyOrder) error
	InsertMeals(ctx context.Context, db *gorm.DB, meals []*MealSlot) error
	FindOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DailyOrder, error)
	FindMeal(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MealSlot, error)
	MealsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]MealSlot, error)
	SaveOrder(ctx context.Context, db *gorm.DB, order *DailyOrder) error
	SaveMeal(ctx context.Context, db *gorm.DB, meal *MealSlot) error
	DeleteOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	OrdersBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*DailyOrder, error)
	OrdersByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*DailyOrder, error)
	OrdersByDate(ctx context.Context, db *gorm.DB, date time.Time) ([]*DailyOrder, error)
	UnlockedMealsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]MealSlot, error)
}
