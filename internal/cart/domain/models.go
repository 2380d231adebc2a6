// Package domain contains the shopping cart.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Cart struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;uniqueIndex" json:"customer_id"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CartID    snowflake.ID `gorm:"not null;index" json:"cart_id"`
	ProductID snowflake.ID `gorm:"not null" json:"product_id"`
	Quantity  int          `gorm:"not null;default:1" json:"quantity"`
	Price     int64        `gorm:"not null" json:"price"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CartItem) TableName() string { return "cart_items" }

var (
	ErrItemNotFound    = errors.New("cart_item_not_found")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// View is the cart plus its items and the running total.
type View struct {
	Cart  *Cart      `json:"cart"`
	Items []CartItem `json:"items"`
	Total int64      `json:"total"`
}

type Service interface {
	Get(ctx context.Context, customerID snowflake.ID) (*View, error)
	AddItem(ctx context.Context, customerID snowflake.ID, req AddItemRequest) (*View, error)
	UpdateItem(ctx context.Context, customerID snowflake.ID, itemID string, quantity int) (*View, error)
	RemoveItem(ctx context.Context, customerID snowflake.ID, itemID string) (*View, error)
	Clear(ctx context.Context, customerID snowflake.ID) error
}
