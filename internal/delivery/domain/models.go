// Package domain contains delivery partners and delivery assignments.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PartnerStatus is the partner's availability, not a delivery state.
type PartnerStatus string

const (
	PartnerAvailable PartnerStatus = "available"
	PartnerBusy      PartnerStatus = "busy"
	PartnerOffline   PartnerStatus = "offline"
)

type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryAssigned   DeliveryStatus = "assigned"
	DeliveryDispatched DeliveryStatus = "dispatched"
	DeliveryPickedUp   DeliveryStatus = "picked_up"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
	DeliveryFailed     DeliveryStatus = "failed"
)

// Partner is a delivery driver. The aggregate counters are always recomputed
// from the deliveries table, never incremented in place, so a replayed status
// update cannot double-count.
type Partner struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID          snowflake.ID  `gorm:"not null;uniqueIndex" json:"customer_id"`
	Name                string        `gorm:"type:text;not null" json:"name"`
	Phone               string        `gorm:"type:text" json:"phone"`
	VehicleNumber       string        `gorm:"type:text" json:"vehicle_number"`
	CurrentStatus       PartnerStatus `gorm:"type:text;not null;default:available" json:"current_status"`
	TotalDeliveries     int           `gorm:"not null;default:0" json:"total_deliveries"`
	CompletedDeliveries int           `gorm:"not null;default:0" json:"completed_deliveries"`
	DelayedDeliveries   int           `gorm:"not null;default:0" json:"delayed_deliveries"`
	CreatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Partner) TableName() string { return "delivery_partners" }

// Delivery links one daily order to the partner carrying it.
type Delivery struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	DailyOrderID snowflake.ID   `gorm:"not null;index" json:"daily_order_id"`
	CustomerID   snowflake.ID   `gorm:"not null;index" json:"customer_id"`
	PartnerID    snowflake.ID   `gorm:"index" json:"partner_id"`
	Status       DeliveryStatus `gorm:"type:text;not null;default:pending" json:"status"`
	Delayed      bool           `gorm:"not null;default:false" json:"delayed"`
	AssignedAt   *time.Time     `gorm:"" json:"assigned_at,omitempty"`
	PickedUpAt   *time.Time     `gorm:"" json:"picked_up_at,omitempty"`
	DeliveredAt  *time.Time     `gorm:"" json:"delivered_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Delivery) TableName() string { return "deliveries" }

var (
	ErrNotFound        = errors.New("delivery_not_found")
	ErrPartnerNotFound = errors.New("partner_not_found")
	ErrPartnerExists   = errors.New("partner_already_registered")
	ErrPartnerBusy     = errors.New("partner_not_available")
	ErrNoPartnerFree   = errors.New("no_partner_available")
	ErrInvalidStatus   = errors.New("invalid_delivery_status")
)

type CreatePartnerRequest struct {
	CustomerID    string `json:"customer_id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	VehicleNumber string `json:"vehicle_number"`
}

type Service interface {
	CreatePartner(ctx context.Context, req CreatePartnerRequest) (*Partner, error)
	GetPartner(ctx context.Context, id string) (*Partner, error)
	ListPartners(ctx context.Context) ([]*Partner, error)
	SetPartnerStatus(ctx context.Context, id string, status PartnerStatus) (*Partner, error)

	CreateDelivery(ctx context.Context, orderID, customerID snowflake.ID) (*Delivery, error)
	GetDelivery(ctx context.Context, id string) (*Delivery, error)
	ListByPartner(ctx context.Context, partnerID snowflake.ID) ([]*Delivery, error)
	ListByOrder(ctx context.Context, orderID snowflake.ID) ([]*Delivery, error)

	// Assign fails with ErrPartnerBusy unless the partner is available.
	Assign(ctx context.Context, deliveryID, partnerID string) (*Delivery, error)
	// AutoAssign picks the first available partner. First match, no
	// load balancing.
	AutoAssign(ctx context.Context, deliveryID string) (*Delivery, error)
	// UpdateStatus moves a delivery through its states. Repeating the
	// current status is a no-op; counters are recomputed, not incremented.
	UpdateStatus(ctx context.Context, deliveryID string, status DeliveryStatus) (*Delivery, error)

	// RecountForOrder and MarkDelayed run inside the meal rollup's
	// transaction so partner stats stay in step with meal statuses.
	RecountForOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error
	MarkDelayed(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error
}
