package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	catalogservice "github.com/mealora/mealora/internal/catalog/service"
	"github.com/mealora/mealora/internal/clock"
	dailyorderdomain "github.com/mealora/mealora/internal/dailyorder/domain"
	dailyorderrepo "github.com/mealora/mealora/internal/dailyorder/repository"
	paymentdomain "github.com/mealora/mealora/internal/payment/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	settingsservice "github.com/mealora/mealora/internal/settings/service"
	"github.com/mealora/mealora/internal/subscription/domain"
	subscriptionrepo "github.com/mealora/mealora/internal/subscription/repository"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
	walletservice "github.com/mealora/mealora/internal/wallet/service"
)

type stubGateway struct {
	fail bool
	n    int
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.ChargeResult, error) {
	g.n++
	if g.fail {
		return &paymentdomain.ChargeResult{Succeeded: false, FailureReason: "card_declined"}, nil
	}
	return &paymentdomain.ChargeResult{TransactionID: fmt.Sprintf("txn-%d", g.n), Succeeded: true}, nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	wallet  walletdomain.Service
	catalog catalogdomain.Service
	clock   *clock.FakeClock
	gateway *stubGateway
	node    *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Subscription{},
		&dailyorderdomain.DailyOrder{},
		&dailyorderdomain.MealSlot{},
		&walletdomain.Wallet{},
		&walletdomain.Entry{},
		&catalogdomain.Program{},
		&settingsdomain.Setting{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	wallet := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node, Clock: fc})
	catalog := catalogservice.NewService(catalogservice.Params{DB: db, Log: log, GenID: node})
	settings := settingsservice.NewService(settingsservice.Params{DB: db, Log: log})
	gateway := &stubGateway{}

	svc := &Service{
		db:       db,
		log:      log,
		genID:    node,
		clock:    fc,
		repo:     subscriptionrepo.Provide(),
		orders:   dailyorderrepo.Provide(),
		wallet:   wallet,
		catalog:  catalog,
		settings: settings,
		gateway:  gateway,
	}
	return &fixture{db: db, svc: svc, wallet: wallet, catalog: catalog, clock: fc, gateway: gateway, node: node}
}

func (f *fixture) program(t *testing.T, name string, days, mealsPerDay int, price int64) *catalogdomain.Program {
	t.Helper()
	program, err := f.catalog.CreateProgram(context.Background(), catalogdomain.CreateProgramRequest{
		Name:         name,
		DurationDays: days,
		MealsPerDay:  mealsPerDay,
		Price:        price,
		Currency:     "INR",
	})
	require.NoError(t, err)
	return program
}

func (f *fixture) subscribe(t *testing.T, customerID snowflake.ID, program *catalogdomain.Program, autoRenew bool) *domain.Subscription {
	t.Helper()
	sub, err := f.svc.Create(context.Background(), domain.Actor{CustomerID: customerID}, domain.CreateRequest{
		ProgramID:     program.ID.String(),
		PaymentMethod: "wallet",
		AutoRenew:     autoRenew,
	})
	require.NoError(t, err)
	return sub
}

func TestCheckoutCreatesDailyOrders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 5000, "topup")
	require.NoError(t, err)

	program := f.program(t, "Weekly Plan", 7, 3, 2100)
	sub := f.subscribe(t, customerID, program, false)

	assert.Equal(t, 7, sub.DurationDays)
	assert.Equal(t, 21, sub.TotalMeals)
	assert.Equal(t, 21, sub.RemainingMeals)
	assert.Equal(t, domain.StatusActive, sub.Status)

	var orders []dailyorderdomain.DailyOrder
	require.NoError(t, f.db.Where("subscription_id = ?", sub.ID).Order("date asc").Find(&orders).Error)
	require.Len(t, orders, 7)
	for _, order := range orders {
		var count int64
		require.NoError(t, f.db.Model(&dailyorderdomain.MealSlot{}).Where("daily_order_id = ?", order.ID).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	}

	wallet, err := f.wallet.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(2900), wallet.Balance)
}

func TestCheckoutRollsBackOnInsufficientBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 50, "topup")
	require.NoError(t, err)

	program := f.program(t, "Weekly Plan", 7, 3, 2100)
	_, err = f.svc.Create(ctx, domain.Actor{CustomerID: customerID}, domain.CreateRequest{
		ProgramID:     program.ID.String(),
		PaymentMethod: "wallet",
	})
	require.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	var subs, orders int64
	require.NoError(t, f.db.Model(&domain.Subscription{}).Count(&subs).Error)
	require.NoError(t, f.db.Model(&dailyorderdomain.DailyOrder{}).Count(&orders).Error)
	assert.Zero(t, subs)
	assert.Zero(t, orders)
}

func TestFreezeShiftsEndDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 5000, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Monthly Plan", 30, 2, 3000), false)

	endBefore := sub.EndDate
	start := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	frozen, err := f.svc.Freeze(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String(), domain.FreezeRequest{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 3),
		Reason:    "travel",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, frozen.FrozenDays)
	require.Len(t, frozen.FreezeHistory, 1)
	assert.Equal(t, "travel", frozen.FreezeHistory[0].Reason)
	assert.Equal(t, endBefore.AddDate(0, 0, 3), frozen.EndDate)
	assert.Equal(t, domain.StatusFreeze, frozen.Status)
}

func TestUnfreezeDueReactivates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 5000, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Monthly Plan", 30, 2, 3000), false)

	start := f.clock.Now().AddDate(0, 0, 1)
	_, err = f.svc.Freeze(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String(), domain.FreezeRequest{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 2),
		Reason:    "travel",
	})
	require.NoError(t, err)

	n, err := f.svc.UnfreezeDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(4 * 24 * time.Hour)
	n, err = f.svc.UnfreezeDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetByID(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestCancelProration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 300, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Monthly Plan", 30, 1, 300), false)

	f.clock.Advance(10 * 24 * time.Hour)

	result, err := f.svc.Cancel(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String(), "moving away")
	require.NoError(t, err)
	assert.Equal(t, 10, result.CompletedDays)
	assert.Equal(t, 20, result.PendingDays)
	assert.Equal(t, int64(200), result.Penalty)
	assert.Equal(t, int64(100), result.Refund)

	wallet, err := f.wallet.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)

	_, err = f.svc.Cancel(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String(), "again")
	require.ErrorIs(t, err, domain.ErrAlreadyCancelled)
}

func TestRenewalRetriesAreBounded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 300, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Monthly Plan", 30, 1, 300), true)

	// Wallet is empty now, so every renewal charge fails.
	f.clock.Advance(31 * 24 * time.Hour)

	for attempt := 1; attempt <= 2; attempt++ {
		n, err := f.svc.RenewDue(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := f.svc.GetByID(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String())
		require.NoError(t, err)
		assert.Equal(t, attempt, got.RenewalAttempts)
		assert.Equal(t, domain.StatusActive, got.Status)
	}

	n, err := f.svc.RenewDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.svc.GetByID(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, got.RenewalAttempts)
	assert.Equal(t, domain.StatusRenewalFailed, got.Status)

	// Terminal state drops out of the renewable set entirely.
	n, err = f.svc.RenewDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	got, err = f.svc.GetByID(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, got.RenewalAttempts)
}

func TestRenewalAdvancesTerm(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 600, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Monthly Plan", 30, 1, 300), true)

	f.clock.Advance(31 * 24 * time.Hour)
	n, err := f.svc.RenewDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetByID(ctx, domain.Actor{CustomerID: customerID}, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), got.StartDate)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), got.EndDate)
	assert.Zero(t, got.ConsumedMeals)

	wallet, err := f.wallet.GetByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
}

func TestPauseLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 5000, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Monthly Plan", 30, 2, 3000), false)
	actor := domain.Actor{CustomerID: customerID}

	for i := 0; i < 3; i++ {
		_, err = f.svc.Pause(ctx, actor, sub.ID.String())
		require.NoError(t, err)
		_, err = f.svc.Resume(ctx, actor, sub.ID.String())
		require.NoError(t, err)
	}

	_, err = f.svc.Pause(ctx, actor, sub.ID.String())
	require.ErrorIs(t, err, domain.ErrPauseLimitReached)
}

func TestOwnershipEnforced(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 5000, "topup")
	require.NoError(t, err)
	sub := f.subscribe(t, customerID, f.program(t, "Weekly Plan", 7, 3, 2100), false)

	stranger := domain.Actor{CustomerID: f.node.Generate()}
	_, err = f.svc.GetByID(ctx, stranger, sub.ID.String())
	require.ErrorIs(t, err, domain.ErrForbidden)

	admin := domain.Actor{CustomerID: stranger.CustomerID, Admin: true}
	got, err := f.svc.GetByID(ctx, admin, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
}

func TestCardCheckoutUsesGateway(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	customerID := f.node.Generate()
	program := f.program(t, "Weekly Plan", 7, 3, 2100)

	sub, err := f.svc.Create(ctx, domain.Actor{CustomerID: customerID}, domain.CreateRequest{
		ProgramID:     program.ID.String(),
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "stub", sub.PaymentGateway)
	assert.Equal(t, "txn-1", sub.TransactionID)
	assert.Equal(t, 1, f.gateway.n)

	f.gateway.fail = true
	_, err = f.svc.Create(ctx, domain.Actor{CustomerID: customerID}, domain.CreateRequest{
		ProgramID:     program.ID.String(),
		PaymentMethod: "card",
	})
	require.ErrorIs(t, err, paymentdomain.ErrGatewayRejected)
}
