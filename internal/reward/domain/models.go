// Package domain contains reward points earned on delivered orders.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusEarned   Status = "earned"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

// Reward is one grant of points. Points convert 1:1 to wallet minor units on
// redemption.
type Reward struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	Points     int64        `gorm:"not null" json:"points"`
	Status     Status       `gorm:"type:text;not null;default:earned;index" json:"status"`
	Source     string       `gorm:"type:text" json:"source"`
	ExpiresAt  time.Time    `gorm:"not null;index" json:"expires_at"`
	RedeemedAt *time.Time   `gorm:"" json:"redeemed_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Reward) TableName() string { return "rewards" }

var (
	ErrNotFound        = errors.New("reward_not_found")
	ErrNothingToRedeem = errors.New("no_points_to_redeem")
)

type Service interface {
	// EarnForDelivery grants the configured flat points for one delivered order.
	EarnForDelivery(ctx context.Context, customerID snowflake.ID, orderRef string) (*Reward, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*Reward, error)
	Balance(ctx context.Context, customerID snowflake.ID) (int64, error)

	// Redeem converts every earned, unexpired grant into one wallet topup.
	Redeem(ctx context.Context, customerID snowflake.ID) (int64, error)

	// ExpireDue marks earned grants past their expiry. Scheduler sweep.
	ExpireDue(ctx context.Context) (int, error)
}
