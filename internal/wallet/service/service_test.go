package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/mealora/mealora/internal/clock"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupWalletTest(t *testing.T) (*gorm.DB, *Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&walletdomain.Wallet{}, &walletdomain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	return db, svc, node
}

func TestWalletLedgerInvariant(t *testing.T) {
	db, svc, node := setupWalletTest(t)
	ctx := context.Background()

	customerID := node.Generate()
	_, err := svc.EnsureWallet(ctx, customerID, "INR")
	require.NoError(t, err)

	_, err = svc.Topup(ctx, customerID, 500, "topup-1")
	require.NoError(t, err)
	_, err = svc.Debit(ctx, customerID, 200, "order-1")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, customerID, 100, walletdomain.EntryTypeRefund, "cancel-1")
	require.NoError(t, err)

	wallet, err := svc.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), wallet.Balance)
	assert.Equal(t, int64(600), wallet.TotalTopups)
	assert.Equal(t, int64(200), wallet.TotalSpent)

	var entries []walletdomain.Entry
	require.NoError(t, db.Where("wallet_id = ?", wallet.ID).Order("created_at asc").Find(&entries).Error)
	require.Len(t, entries, 3)

	var sum int64
	for _, entry := range entries {
		assert.Equal(t, entry.BalanceAfter-entry.BalanceBefore, entry.Type.Signed(entry.Amount))
		sum += entry.Type.Signed(entry.Amount)
	}
	assert.Equal(t, wallet.Balance, sum)
}

func TestDebitInsufficientBalance(t *testing.T) {
	_, svc, node := setupWalletTest(t)
	ctx := context.Background()

	customerID := node.Generate()
	_, err := svc.EnsureWallet(ctx, customerID, "INR")
	require.NoError(t, err)

	_, err = svc.Topup(ctx, customerID, 100, "topup-1")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, customerID, 150, "order-1")
	assert.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	// failed debit must not leave a ledger entry or touch the balance
	wallet, err := svc.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)

	entries, err := svc.History(ctx, customerID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreditUnknownTypeFallsBackToTopup(t *testing.T) {
	_, svc, node := setupWalletTest(t)
	ctx := context.Background()

	customerID := node.Generate()
	_, err := svc.EnsureWallet(ctx, customerID, "INR")
	require.NoError(t, err)

	entry, err := svc.Credit(ctx, customerID, 50, walletdomain.EntryTypePayment, "weird")
	require.NoError(t, err)
	assert.Equal(t, walletdomain.EntryTypeTopup, entry.Type)
}
