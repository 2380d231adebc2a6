package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	"github.com/mealora/mealora/internal/payment/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	settingsservice "github.com/mealora/mealora/internal/settings/service"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
	subscriptionrepo "github.com/mealora/mealora/internal/subscription/repository"
	subscriptionservice "github.com/mealora/mealora/internal/subscription/service"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
	walletservice "github.com/mealora/mealora/internal/wallet/service"
)

const testSecret = "whsec_test"

type fixture struct {
	db      *gorm.DB
	svc     *Service
	subs    subscriptiondomain.Service
	catalog catalogdomain.Service
	node    *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Payment{},
		&subscriptiondomain.Subscription{},
		&dailyorderdomain.DailyOrder{},
		&dailyorderdomain.MealSlot{},
		&walletdomain.Wallet{},
		&walletdomain.Entry{},
		&catalogdomain.Program{},
		&settingsdomain.Setting{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	wallet := walletservice.NewService(walletservice.Params{DB: db, Log: log, GenID: node, Clock: fc})
	catalog := catalogservice.NewService(catalogservice.Params{DB: db, Log: log, GenID: node})
	settings := settingsservice.NewService(settingsservice.Params{DB: db, Log: log})

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
		Gateway:  rejectAllGateway{},
	})

	svc := &Service{
		db:      db,
		log:     log,
		genID:   node,
		clock:   fc,
		secret:  []byte(testSecret),
		catalog: catalog,
		subs:    subs,
	}
	return &fixture{db: db, svc: svc, subs: subs, catalog: catalog, node: node}
}

// The webhook path never charges; a gateway call from it is a bug.
type rejectAllGateway struct{}

func (rejectAllGateway) Name() string { return "reject" }

func (rejectAllGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	return &domain.ChargeResult{Succeeded: false, FailureReason: "unexpected charge"}, nil
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := setup(t)
	body := []byte(`{"type":"payment_intent.succeeded"}`)

	_, err := f.svc.HandleWebhook(context.Background(), "stripe", body, "deadbeef")
	require.ErrorIs(t, err, domain.ErrBadSignature)

	var count int64
	require.NoError(t, f.db.Model(&domain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookActivatesPlan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.catalog.CreateProgram(ctx, catalogdomain.CreateProgramRequest{
		Name:         "Weekly Plan",
		DurationDays: 7,
		MealsPerDay:  3,
		Price:        2100,
		Currency:     "INR",
	})
	require.NoError(t, err)

	customerID := f.node.Generate()
	body := []byte(fmt.Sprintf(
		`{"type":"payment_intent.succeeded","id":"pi_123","amount":2100,"currency":"INR","metadata":{"userId":%q,"planDuration":7}}`,
		customerID.String(),
	))

	payment, err := f.svc.HandleWebhook(ctx, "stripe", body, sign(body))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSucceeded, payment.Status)
	assert.Equal(t, "pi_123", payment.Reference)

	subs, err := f.subs.ListByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, subscriptiondomain.StatusActive, subs[0].Status)
	assert.Equal(t, 21, subs[0].TotalMeals)
	assert.Equal(t, "stripe", subs[0].PaymentGateway)
	assert.Equal(t, "pi_123", subs[0].TransactionID)

	var orders int64
	require.NoError(t, f.db.Model(&dailyorderdomain.DailyOrder{}).Count(&orders).Error)
	assert.Equal(t, int64(7), orders)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	f := setup(t)
	body := []byte(`{"type":"payment_intent.created","id":"pi_1","metadata":{}}`)

	_, err := f.svc.HandleWebhook(context.Background(), "stripe", body, sign(body))
	require.ErrorIs(t, err, domain.ErrUnknownEventType)
}
