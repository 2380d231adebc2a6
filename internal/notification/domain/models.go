// Package domain contains notifications and the delivery fan-out contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event names the real-time channel a notification is pushed on.
type Event string

const (
	EventNew   Event = "new_notification"
	EventCart  Event = "cart_notification"
	EventOrder Event = "order_notification"
)

type Notification struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	RecipientID snowflake.ID      `gorm:"not null;index" json:"recipient_id"`
	Event       Event             `gorm:"type:text;not null" json:"event"`
	Title       string            `gorm:"type:text;not null" json:"title"`
	Body        string            `gorm:"type:text" json:"body"`
	Data        datatypes.JSONMap `gorm:"type:jsonb" json:"data,omitempty"`
	Read        bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

var ErrNotFound = errors.New("notification_not_found")

// Message is the payload placed on the queue and pushed over websockets.
type Message struct {
	RecipientID snowflake.ID   `json:"recipient_id"`
	Event       Event          `json:"event"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`
}

// Broadcaster pushes an event to a connected recipient. Best effort,
// at-most-once; a recipient with no open connection is skipped.
type Broadcaster interface {
	Broadcast(recipientID snowflake.ID, event Event, payload any)
}

// Publisher hands a message to the queue for the deferred fan-out worker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type Service interface {
	// Notify persists the notification, pushes it over the live channel and
	// queues it for the worker. Persist failure is the only hard error.
	Notify(ctx context.Context, msg Message) (*Notification, error)

	ListByRecipient(ctx context.Context, recipientID snowflake.ID) ([]*Notification, error)
	MarkRead(ctx context.Context, recipientID snowflake.ID, id string) (*Notification, error)
	Delete(ctx context.Context, recipientID snowflake.ID, id string) error
}
