// Package domain contains the wallet balance and its append-only ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type EntryType string

const (
	EntryTypeTopup      EntryType = "topup"
	EntryTypePayment    EntryType = "payment"
	EntryTypeWithdrawal EntryType = "withdrawal"
	EntryTypeRefund     EntryType = "refund"
)

// Signed returns the amount with the sign the entry applies to the balance.
func (t EntryType) Signed(amount int64) int64 {
	switch t {
	case EntryTypePayment, EntryTypeWithdrawal:
		return -amount
	default:
		return amount
	}
}

// Wallet carries the current balance and running totals. Amounts are minor units.
type Wallet struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID `gorm:"not null;uniqueIndex" json:"customer_id"`
	Balance     int64        `gorm:"not null;default:0" json:"balance"`
	TotalTopups int64        `gorm:"not null;default:0" json:"total_topups"`
	TotalSpent  int64        `gorm:"not null;default:0" json:"total_spent"`
	Currency    string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Wallet) TableName() string { return "wallets" }

// Entry is one immutable ledger row. BalanceAfter must equal
// BalanceBefore plus the signed amount; rows are never updated.
type Entry struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	WalletID      snowflake.ID `gorm:"not null;index" json:"wallet_id"`
	Type          EntryType    `gorm:"type:text;not null" json:"type"`
	Amount        int64        `gorm:"not null" json:"amount"`
	BalanceBefore int64        `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64        `gorm:"not null" json:"balance_after"`
	Status        string       `gorm:"type:text;not null;default:completed" json:"status"`
	ReferenceID   string       `gorm:"type:text" json:"reference_id"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "wallet_entries" }

var (
	ErrNotFound            = errors.New("wallet_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_wallet_balance")
)

type Service interface {
	GetByCustomer(ctx context.Context, customerID snowflake.ID) (*Wallet, error)
	EnsureWallet(ctx context.Context, customerID snowflake.ID, currency string) (*Wallet, error)
	Topup(ctx context.Context, customerID snowflake.ID, amount int64, reference string) (*Entry, error)
	Debit(ctx context.Context, customerID snowflake.ID, amount int64, reference string) (*Entry, error)
	Credit(ctx context.Context, customerID snowflake.ID, amount int64, entryType EntryType, reference string) (*Entry, error)
	History(ctx context.Context, customerID snowflake.ID) ([]*Entry, error)

	// DebitTx and CreditTx run inside the caller's transaction so checkout
	// and reward redemption can keep their writes atomic.
	DebitTx(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, amount int64, reference string) (*Entry, error)
	CreditTx(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, amount int64, entryType EntryType, reference string) (*Entry, error)
}
