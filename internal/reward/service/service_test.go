package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/reward/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	settingsservice "github.com/mealora/mealora/internal/settings/service"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
	walletservice "github.com/mealora/mealora/internal/wallet/service"
)

type rewardFixture struct {
	db     *gorm.DB
	svc    domain.Service
	wallet walletdomain.Service
	clock  *clock.FakeClock
	node   *snowflake.Node
}

func setupRewardTest(t *testing.T) *rewardFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Reward{},
		&walletdomain.Wallet{},
		&walletdomain.Entry{},
		&settingsdomain.Setting{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	wallet := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node, Clock: fc})
	settings := settingsservice.NewService(settingsservice.Params{DB: db, Log: log})
	cfg := &config.Config{DefaultCurrency: "INR"}

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Config:   cfg,
		Settings: settings,
		Wallet:   wallet,
	})

	return &rewardFixture{db: db, svc: svc, wallet: wallet, clock: fc, node: node}
}

func TestRedeemConvertsGrantsToWalletCredit(t *testing.T) {
	f := setupRewardTest(t)
	ctx := context.Background()
	customerID := f.node.Generate()

	_, err := f.svc.EarnForDelivery(ctx, customerID, "order-1")
	require.NoError(t, err)
	_, err = f.svc.EarnForDelivery(ctx, customerID, "order-2")
	require.NoError(t, err)

	balance, err := f.svc.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	credited, err := f.svc.Redeem(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), credited)

	wallet, err := f.wallet.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), wallet.Balance)

	// Every grant is spent; a second redeem has nothing to convert.
	_, err = f.svc.Redeem(ctx, customerID)
	assert.ErrorIs(t, err, domain.ErrNothingToRedeem)

	balance, err = f.svc.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestExpiredGrantsNeitherCountNorRedeem(t *testing.T) {
	f := setupRewardTest(t)
	ctx := context.Background()
	customerID := f.node.Generate()

	_, err := f.svc.EarnForDelivery(ctx, customerID, "order-1")
	require.NoError(t, err)

	// Default TTL is 90 days.
	f.clock.Advance(91 * 24 * time.Hour)

	balance, err := f.svc.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = f.svc.Redeem(ctx, customerID)
	assert.ErrorIs(t, err, domain.ErrNothingToRedeem)

	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// The sweep is idempotent.
	expired, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}
