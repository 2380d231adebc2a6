// Package domain contains the subscription entity and its lifecycle state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusPaused        Status = "paused"
	StatusFreeze        Status = "freeze"
	StatusCancelled     Status = "cancelled"
	StatusExpired       Status = "expired"
	StatusRenewalFailed Status = "renewal_failed"
)

// FreezeWindow is one entry of the ordered freeze history.
type FreezeWindow struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// SwapRecord is one entry of the ordered swap history.
type SwapRecord struct {
	Date     time.Time `json:"date"`
	FromMeal string    `json:"from_meal"`
	ToMeal   string    `json:"to_meal"`
}

// Subscription captures a customer's meal plan agreement. Money is minor units.
type Subscription struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	ProgramID  snowflake.ID `gorm:"not null;index" json:"program_id"`

	PlanName     string    `gorm:"type:text;not null" json:"plan_name"`
	StartDate    time.Time `gorm:"not null" json:"start_date"`
	EndDate      time.Time `gorm:"not null" json:"end_date"`
	DurationDays int       `gorm:"not null" json:"duration_days"`
	BillingCycle string    `gorm:"type:text;not null" json:"billing_cycle"`
	Price        int64     `gorm:"not null" json:"price"`
	Currency     string    `gorm:"type:text;not null" json:"currency"`
	MealsPerDay  int       `gorm:"not null" json:"meals_per_day"`

	TotalMeals        int `gorm:"not null;default:0" json:"total_meals"`
	ConsumedMeals     int `gorm:"not null;default:0" json:"consumed_meals"`
	RemainingMeals    int `gorm:"not null;default:0" json:"remaining_meals"`
	DeliveredMeals    int `gorm:"not null;default:0" json:"delivered_meals"`
	PendingDeliveries int `gorm:"not null;default:0" json:"pending_deliveries"`
	SwappableMeals    int `gorm:"not null;default:0" json:"swappable_meals"`
	FrozenDays        int `gorm:"not null;default:0" json:"frozen_days"`

	FreezeHistory datatypes.JSONSlice[FreezeWindow] `gorm:"type:jsonb" json:"freeze_history"`
	SwapHistory   datatypes.JSONSlice[SwapRecord]   `gorm:"type:jsonb" json:"swap_history"`

	Status          Status `gorm:"type:text;not null;index" json:"status"`
	AutoRenew       bool   `gorm:"not null;default:false" json:"auto_renew"`
	IsPaused        bool   `gorm:"not null;default:false" json:"is_paused"`
	PauseCount      int    `gorm:"not null;default:0" json:"pause_count"`
	RenewalAttempts int    `gorm:"not null;default:0" json:"renewal_attempts"`

	CancellationDate   *time.Time `gorm:"" json:"cancellation_date,omitempty"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancellationStatus string     `gorm:"type:text" json:"cancellation_status,omitempty"`
	CompletedDays      int        `gorm:"not null;default:0" json:"completed_days"`
	PendingDays        int        `gorm:"not null;default:0" json:"pending_days"`
	PenaltyAmount      int64      `gorm:"not null;default:0" json:"penalty_amount"`
	RefundAmount       int64      `gorm:"not null;default:0" json:"refund_amount"`

	PaymentGateway string     `gorm:"type:text" json:"payment_gateway"`
	TransactionID  string     `gorm:"type:text" json:"transaction_id"`
	PaymentStatus  string     `gorm:"type:text" json:"payment_status"`
	AmountPaid     int64      `gorm:"not null;default:0" json:"amount_paid"`
	PaymentDate    *time.Time `gorm:"" json:"payment_date,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

const day = 24 * time.Hour

// CeilDays returns the duration between two instants in whole days, rounded up.
func CeilDays(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	d := to.Sub(from)
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

// Recompute re-derives every derived field from the authoritative ones.
// Call after every mutation that touches dates or counters; nothing else
// maintains these fields.
func Recompute(sub *Subscription, now time.Time) {
	sub.DurationDays = CeilDays(sub.StartDate, sub.EndDate)
	sub.TotalMeals = sub.DurationDays * sub.MealsPerDay
	sub.RemainingMeals = sub.TotalMeals - sub.ConsumedMeals

	pending := sub.RemainingMeals - sub.SwappableMeals
	if pending < 0 {
		pending = 0
	}
	sub.PendingDeliveries = pending

	if sub.Status == StatusActive && sub.EndDate.Before(now) {
		sub.Status = StatusExpired
	}
	sub.UpdatedAt = now
}

// LastFreezeEnded reports whether the most recent freeze window has passed.
func (s *Subscription) LastFreezeEnded(now time.Time) bool {
	if len(s.FreezeHistory) == 0 {
		return true
	}
	last := s.FreezeHistory[len(s.FreezeHistory)-1]
	return !last.EndDate.After(now)
}
