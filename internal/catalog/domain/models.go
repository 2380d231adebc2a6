// Package domain contains the product, program and restaurant catalog.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a single meal SKU. Prices are minor units.
type Product struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	Price        int64        `gorm:"not null" json:"price"`
	CostPrice    int64        `gorm:"not null;default:0" json:"cost_price"`
	Currency     string       `gorm:"type:text;not null" json:"currency"`
	RestaurantID snowflake.ID `gorm:"index" json:"restaurant_id"`
	Active       bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// Program is a subscription plan template: N days of M meals at a price.
type Program struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	DurationDays int          `gorm:"not null" json:"duration_days"`
	MealsPerDay  int          `gorm:"not null" json:"meals_per_day"`
	Price        int64        `gorm:"not null" json:"price"`
	Currency     string       `gorm:"type:text;not null" json:"currency"`
	BillingCycle string       `gorm:"type:text;not null;default:one_time" json:"billing_cycle"`
	Active       bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Program) TableName() string { return "programs" }

type Restaurant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Address   string       `gorm:"type:text" json:"address"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Restaurant) TableName() string { return "restaurants" }

// MenuItem places a product on a restaurant menu for a meal slot.
type MenuItem struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	RestaurantID snowflake.ID `gorm:"not null;index" json:"restaurant_id"`
	ProductID    snowflake.ID `gorm:"not null;index" json:"product_id"`
	Slot         string       `gorm:"type:text;not null" json:"slot"`
	Available    bool         `gorm:"not null;default:true" json:"available"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (MenuItem) TableName() string { return "menu_items" }

var (
	ErrProductNotFound    = errors.New("product_not_found")
	ErrProgramNotFound    = errors.New("program_not_found")
	ErrRestaurantNotFound = errors.New("restaurant_not_found")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrSlugTaken          = errors.New("slug_taken")
)

type CreateProductRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	CostPrice    int64  `json:"cost_price"`
	Currency     string `json:"currency"`
	RestaurantID string `json:"restaurant_id"`
}

type CreateProgramRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DurationDays int    `json:"duration_days"`
	MealsPerDay  int    `json:"meals_per_day"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	BillingCycle string `json:"billing_cycle"`
}

type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateProgram(ctx context.Context, req CreateProgramRequest) (*Program, error)
	GetProgram(ctx context.Context, id string) (*Program, error)
	ListPrograms(ctx context.Context) ([]*Program, error)

	CreateRestaurant(ctx context.Context, name, address string) (*Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*Restaurant, error)
	AddMenuItem(ctx context.Context, restaurantID, productID, slot string) (*MenuItem, error)
	ListMenu(ctx context.Context, restaurantID string) ([]*MenuItem, error)
}
