package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/mealora/mealora/internal/clock"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) walletdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) GetByCustomer(ctx context.Context, customerID snowflake.ID) (*walletdomain.Wallet, error) {
	return findWallet(ctx, s.db, customerID, false)
}

func (s *Service) EnsureWallet(ctx context.Context, customerID snowflake.ID, currency string) (*walletdomain.Wallet, error) {
	wallet, err := s.GetByCustomer(ctx, customerID)
	if err == nil {
		return wallet, nil
	}
	if err != walletdomain.ErrNotFound {
		return nil, err
	}

	wallet = &walletdomain.Wallet{
		ID:         s.genID.Generate(),
		CustomerID: customerID,
		Currency:   currency,
	}
	if err := s.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *Service) Topup(ctx context.Context, customerID snowflake.ID, amount int64, reference string) (*walletdomain.Entry, error) {
	return s.apply(ctx, s.db, customerID, walletdomain.EntryTypeTopup, amount, reference)
}

func (s *Service) Debit(ctx context.Context, customerID snowflake.ID, amount int64, reference string) (*walletdomain.Entry, error) {
	var entry *walletdomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.apply(ctx, tx, customerID, walletdomain.EntryTypePayment, amount, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, amount int64, reference string) (*walletdomain.Entry, error) {
	return s.apply(ctx, tx, customerID, walletdomain.EntryTypePayment, amount, reference)
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, amount int64, entryType walletdomain.EntryType, reference string) (*walletdomain.Entry, error) {
	if entryType != walletdomain.EntryTypeRefund && entryType != walletdomain.EntryTypeTopup {
		entryType = walletdomain.EntryTypeTopup
	}
	return s.apply(ctx, tx, customerID, entryType, amount, reference)
}

func (s *Service) Credit(ctx context.Context, customerID snowflake.ID, amount int64, entryType walletdomain.EntryType, reference string) (*walletdomain.Entry, error) {
	if entryType != walletdomain.EntryTypeRefund && entryType != walletdomain.EntryTypeTopup {
		entryType = walletdomain.EntryTypeTopup
	}
	var entry *walletdomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.apply(ctx, tx, customerID, entryType, amount, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) History(ctx context.Context, customerID snowflake.ID) ([]*walletdomain.Entry, error) {
	wallet, err := s.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var entries []*walletdomain.Entry
	err = s.db.WithContext(ctx).
		Where("wallet_id = ?", wallet.ID).
		Order("created_at desc").
		Find(&entries).Error
	return entries, err
}

// apply performs the read-modify-write with the wallet row locked so concurrent
// top-up/spend on one wallet cannot lose an update.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, entryType walletdomain.EntryType, amount int64, reference string) (*walletdomain.Entry, error) {
	if amount <= 0 {
		return nil, walletdomain.ErrInvalidAmount
	}

	wallet, err := findWallet(ctx, tx, customerID, true)
	if err != nil {
		return nil, err
	}

	signed := entryType.Signed(amount)
	if wallet.Balance+signed < 0 {
		return nil, walletdomain.ErrInsufficientBalance
	}

	entry := &walletdomain.Entry{
		ID:            s.genID.Generate(),
		WalletID:      wallet.ID,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance + signed,
		Status:        "completed",
		ReferenceID:   reference,
		CreatedAt:     s.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	updates := map[string]any{
		"balance":    entry.BalanceAfter,
		"updated_at": s.clock.Now(),
	}
	switch entryType {
	case walletdomain.EntryTypeTopup, walletdomain.EntryTypeRefund:
		updates["total_topups"] = wallet.TotalTopups + amount
	case walletdomain.EntryTypePayment, walletdomain.EntryTypeWithdrawal:
		updates["total_spent"] = wallet.TotalSpent + amount
	}
	if err := tx.WithContext(ctx).Model(&walletdomain.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	return entry, nil
}

func findWallet(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, forUpdate bool) (*walletdomain.Wallet, error) {
	stmt := tx.WithContext(ctx)
	// sqlite has no row locks; tests run the whole op in one transaction anyway.
	if forUpdate && tx.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var wallet walletdomain.Wallet
	err := stmt.Where("customer_id = ?", customerID).First(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, walletdomain.ErrNotFound
		}
		return nil, err
	}
	return &wallet, nil
}
