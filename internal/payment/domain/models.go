// Package domain contains payment records and the gateway contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records one charge attempt against a customer.
type Payment struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	Amount     int64             `gorm:"not null" json:"amount"`
	Currency   string            `gorm:"type:text;not null" json:"currency"`
	Method     string            `gorm:"type:text;not null" json:"method"`
	Gateway    string            `gorm:"type:text" json:"gateway"`
	Reference  string            `gorm:"type:text;index" json:"reference"`
	Status     PaymentStatus     `gorm:"type:text;not null" json:"status"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

var (
	ErrNotFound         = errors.New("payment_not_found")
	ErrBadSignature     = errors.New("invalid_webhook_signature")
	ErrGatewayRejected  = errors.New("gateway_rejected")
	ErrUnknownEventType = errors.New("unknown_event_type")
)

// ChargeRequest asks the gateway to charge a stored card.
type ChargeRequest struct {
	CustomerID snowflake.ID
	Amount     int64
	Currency   string
	Reference  string
}

// ChargeResult is the gateway's answer to a charge attempt.
type ChargeResult struct {
	TransactionID string
	Succeeded     bool
	FailureReason string
}

// Gateway abstracts the card processor. The stub implementation approves
// everything; a real processor slots in behind the same interface.
type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// WebhookEvent is the parsed body of a gateway callback.
type WebhookEvent struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata"`
}

type Service interface {
	// HandleWebhook verifies the signature, records the payment and, for
	// payment_intent.succeeded events, activates the purchase named by the
	// event metadata (userId, planDuration).
	HandleWebhook(ctx context.Context, provider string, body []byte, signature string) (*Payment, error)

	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*Payment, error)
	GetByID(ctx context.Context, id string) (*Payment, error)
}
