package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("subscription_not_found")
	ErrForbidden            = errors.New("subscription_forbidden")
	ErrInvalidProgram       = errors.New("invalid_program")
	ErrInvalidCustomer      = errors.New("invalid_customer")
	ErrInvalidWindow        = errors.New("invalid_freeze_window")
	ErrInvalidSwap          = errors.New("invalid_swap")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrAlreadyCancelled     = errors.New("subscription_already_cancelled")
	ErrNotActive            = errors.New("subscription_not_active")
	ErrPauseLimitReached    = errors.New("pause_limit_reached")
)

// Actor identifies the caller for ownership checks.
type Actor struct {
	CustomerID snowflake.ID
	Admin      bool
}

func (a Actor) MayAccess(sub *Subscription) bool {
	return a.Admin || a.CustomerID == sub.CustomerID
}

type CreateRequest struct {
	CustomerID    string `json:"customer_id"`
	ProgramID     string `json:"program_id"`
	PaymentMethod string `json:"payment_method"` // wallet | card
	AutoRenew     bool   `json:"auto_renew"`
	StartDate     string `json:"start_date,omitempty"` // RFC3339 date, defaults to today
}

type FreezeRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

type SwapRequest struct {
	Date     time.Time `json:"date"`
	FromMeal string    `json:"from_meal"`
	ToMeal   string    `json:"to_meal"`
}

// CancelResult reports the proration maths applied on cancellation.
type CancelResult struct {
	CompletedDays int   `json:"completed_days"`
	PendingDays   int   `json:"pending_days"`
	Penalty       int64 `json:"penalty"`
	Refund        int64 `json:"refund"`
}

type Service interface {
	Create(ctx context.Context, actor Actor, req CreateRequest) (*Subscription, error)

	// ActivatePaid creates a subscription for a charge that already settled
	// out of band (gateway webhook). No payment is attempted.
	ActivatePaid(ctx context.Context, customerID snowflake.ID, programID, gatewayName, transactionID string) (*Subscription, error)
	GetByID(ctx context.Context, actor Actor, id string) (*Subscription, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error

	Freeze(ctx context.Context, actor Actor, id string, req FreezeRequest) (*Subscription, error)
	Swap(ctx context.Context, actor Actor, id string, req SwapRequest) (*Subscription, error)
	Cancel(ctx context.Context, actor Actor, id string, reason string) (*CancelResult, error)
	Pause(ctx context.Context, actor Actor, id string) (*Subscription, error)
	Resume(ctx context.Context, actor Actor, id string) (*Subscription, error)

	// RecordDelivery bumps consumed/delivered counters when a meal reaches
	// the customer. Runs inside the caller's transaction.
	RecordDelivery(ctx context.Context, tx *gorm.DB, id snowflake.ID) error

	// Sweeps, driven by the scheduler.
	UnfreezeDue(ctx context.Context) (int, error)
	RenewDue(ctx context.Context) (int, error)
	ExpireDue(ctx context.Context) (int, error)
}

// Repository gives the service transactional access to subscription rows.
// Methods take the gorm handle so callers can thread a transaction through.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	Save(ctx context.Context, db *gorm.DB, sub *Subscription) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*Subscription, error)
	List(ctx context.Context, db *gorm.DB) ([]*Subscription, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status Status) ([]*Subscription, error)
	ListRenewable(ctx context.Context, db *gorm.DB, now time.Time) ([]*Subscription, error)
	ListExpiring(ctx context.Context, db *gorm.DB, now time.Time) ([]*Subscription, error)
}
