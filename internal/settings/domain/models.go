// Package domain contains the key/value settings consulted by lifecycle logic.
package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

// Setting keys consulted by the subscription and order lifecycle.
const (
	KeyPauseLimit        = "subscription.pause_limit"
	KeyRenewalRetryLimit = "subscription.renewal_retry_limit"
	KeyMealLockWindow    = "order.meal_lock_window_minutes"
	KeyRefundPolicy      = "subscription.refund_policy"
	KeyDiscountSlabs     = "checkout.discount_slabs"
	KeyRewardPoints      = "reward.points_per_delivered_order"
	KeyRewardTTLDays     = "reward.ttl_days"
)

type Setting struct {
	Key       string            `gorm:"primaryKey;type:text" json:"key"`
	Value     datatypes.JSONMap `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Setting) TableName() string { return "settings" }

// DiscountSlab applies a percentage discount once the plan duration reaches MinDays.
type DiscountSlab struct {
	MinDays    int     `json:"min_days"`
	DiscountPc float64 `json:"discount_pc"`
}

// RefundPolicy controls cancellation maths. PenaltyPerPendingDay keeps the
// per-day proration of the plan price when zero.
type RefundPolicy struct {
	PenaltyPerPendingDay int64 `json:"penalty_per_pending_day"`
	MinRefund            int64 `json:"min_refund"`
}

var (
	ErrNotFound   = errors.New("setting_not_found")
	ErrInvalidKey = errors.New("invalid_setting_key")
)

type Service interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Put(ctx context.Context, key string, value map[string]any) (*Setting, error)
	List(ctx context.Context) ([]*Setting, error)

	PauseLimit(ctx context.Context) int
	RenewalRetryLimit(ctx context.Context) int
	MealLockWindow(ctx context.Context) time.Duration
	RefundPolicy(ctx context.Context) RefundPolicy
	DiscountSlabs(ctx context.Context) []DiscountSlab
	RewardPoints(ctx context.Context) int64
	RewardTTL(ctx context.Context) time.Duration
}
