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

	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	catalogservice "github.com/mealora/mealora/internal/catalog/service"
	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/dailyorder/domain"
	dailyorderrepo "github.com/mealora/mealora/internal/dailyorder/repository"
	deliverydomain "github.com/mealora/mealora/internal/delivery/domain"
	deliveryservice "github.com/mealora/mealora/internal/delivery/service"
	paymentdomain "github.com/mealora/mealora/internal/payment/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	settingsservice "github.com/mealora/mealora/internal/settings/service"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
	subscriptionrepo "github.com/mealora/mealora/internal/subscription/repository"
	subscriptionservice "github.com/mealora/mealora/internal/subscription/service"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
	walletservice "github.com/mealora/mealora/internal/wallet/service"
)

type approveAllGateway struct{}

func (approveAllGateway) Name() string { return "stub" }

func (approveAllGateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.ChargeResult, error) {
	return &paymentdomain.ChargeResult{TransactionID: "txn", Succeeded: true}, nil
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	subs     subscriptiondomain.Service
	partners deliverydomain.Service
	wallet   walletdomain.Service
	catalog  catalogdomain.Service
	clock    *clock.FakeClock
	node     *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&domain.DailyOrder{},
		&domain.MealSlot{},
		&walletdomain.Wallet{},
		&walletdomain.Entry{},
		&catalogdomain.Program{},
		&settingsdomain.Setting{},
		&deliverydomain.Partner{},
		&deliverydomain.Delivery{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	wallet := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node, Clock: fc})
	catalog := catalogservice.NewService(catalogservice.Params{DB: db, Log: log, GenID: node})
	settings := settingsservice.NewService(settingsservice.Params{DB: db, Log: log})
	partners := deliveryservice.NewService(deliveryservice.Params{DB: db, Log: log, GenID: node, Clock: fc})

	subs := subscriptionservice.NewService(subscriptionservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Repo:     subscriptionrepo.Provide(),
		Orders:   dailyorderrepo.Provide(),
		Wallet:   wallet,
		Catalog:  catalog,
		Settings: settings,
		Gateway:  approveAllGateway{},
	})

	svc := &Service{
		db:       db,
		log:      log,
		genID:    node,
		clock:    fc,
		repo:     dailyorderrepo.Provide(),
		subs:     subs,
		partners: partners,
		settings: settings,
	}
	return &fixture{db: db, svc: svc, subs: subs, partners: partners, wallet: wallet, catalog: catalog, clock: fc, node: node}
}

func (f *fixture) subscribe(t *testing.T, days, mealsPerDay int) (*subscriptiondomain.Subscription, []*domain.DailyOrder) {
	t.Helper()
	ctx := context.Background()

	customerID := f.node.Generate()
	_, err := f.wallet.Topup(ctx, customerID, 100000, "topup")
	require.NoError(t, err)

	program, err := f.catalog.CreateProgram(ctx, catalogdomain.CreateProgramRequest{
		Name:         "Test Plan",
		DurationDays: days,
		MealsPerDay:  mealsPerDay,
		Price:        int64(days * mealsPerDay * 100),
		Currency:     "INR",
	})
	require.NoError(t, err)

	sub, err := f.subs.Create(ctx, subscriptiondomain.Actor{CustomerID: customerID}, subscriptiondomain.CreateRequest{
		ProgramID:     program.ID.String(),
		PaymentMethod: "wallet",
	})
	require.NoError(t, err)

	orders, err := f.svc.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, orders, days)
	return sub, orders
}

func (f *fixture) partner(t *testing.T) *deliverydomain.Partner {
	t.Helper()
	partner, err := f.partners.CreatePartner(context.Background(), deliverydomain.CreatePartnerRequest{
		CustomerID: f.node.Generate().String(),
		Name:       "Ravi",
	})
	require.NoError(t, err)
	return partner
}

func TestMealRollupOnOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, orders := f.subscribe(t, 2, 3)
	order, mealsPtr, err := f.svc.GetByID(ctx, orders[0].ID.String())
	require.NoError(t, err)
	meals := *mealsPtr
	require.Len(t, meals, 3)
	assert.Equal(t, domain.OrderConfirmed, order.OrderStatus)

	got, err := f.svc.UpdateMealStatus(ctx, meals[0].ID.String(), domain.MealDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, got.OrderStatus)

	got, err = f.svc.UpdateMealStatus(ctx, meals[1].ID.String(), domain.MealDelivered)
	require.NoError(t, err)

	got, err = f.svc.UpdateMealStatus(ctx, meals[2].ID.String(), domain.MealDelayed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPartiallyDelivered, got.OrderStatus)

	got, err = f.svc.UpdateMealStatus(ctx, meals[2].ID.String(), domain.MealDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderDelivered, got.OrderStatus)
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub, orders := f.subscribe(t, 1, 1)
	_, mealsPtr, err := f.svc.GetByID(ctx, orders[0].ID.String())
	require.NoError(t, err)
	meal := (*mealsPtr)[0]

	partner := f.partner(t)
	delivery, err := f.partners.CreateDelivery(ctx, orders[0].ID, sub.CustomerID)
	require.NoError(t, err)
	_, err = f.partners.Assign(ctx, delivery.ID.String(), partner.ID.String())
	require.NoError(t, err)
	_, err = f.partners.UpdateStatus(ctx, delivery.ID.String(), deliverydomain.DeliveryDelivered)
	require.NoError(t, err)

	_, err = f.svc.UpdateMealStatus(ctx, meal.ID.String(), domain.MealDelivered)
	require.NoError(t, err)
	_, err = f.svc.UpdateMealStatus(ctx, meal.ID.String(), domain.MealDelivered)
	require.NoError(t, err)

	got, err := f.partners.GetPartner(ctx, partner.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalDeliveries)
	assert.Equal(t, 1, got.CompletedDeliveries)

	updated, err := f.subs.GetByID(ctx, subscriptiondomain.Actor{Admin: true}, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ConsumedMeals)
	assert.Equal(t, updated.TotalMeals-1, updated.RemainingMeals)
}

func TestBulkStatusUsesLookupTable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, orders := f.subscribe(t, 1, 2)

	got, err := f.svc.BulkUpdateStatus(ctx, orders[0].ID.String(), domain.MealPrepared)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPrepared, got.OrderStatus)

	var meals []domain.MealSlot
	require.NoError(t, f.db.Where("daily_order_id = ?", orders[0].ID).Find(&meals).Error)
	for _, m := range meals {
		assert.Equal(t, domain.MealPrepared, m.Status)
		assert.Len(t, m.StatusHistory, 1)
	}
}

func TestLockDueLocksWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.subscribe(t, 3, 1)

	// Default window is two hours; only day one is inside it at midnight.
	n, err := f.svc.LockDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.clock.Advance(24 * time.Hour)
	n, err = f.svc.LockDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
