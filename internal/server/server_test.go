package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/config"
	customerdomain "github.com/mealora/mealora/internal/customer/domain"
	dailyorderdomain "github.com/mealora/mealora/internal/dailyorder/domain"
	"github.com/mealora/mealora/internal/metrics"
	paymentdomain "github.com/mealora/mealora/internal/payment/domain"
	rewarddomain "github.com/mealora/mealora/internal/reward/domain"
)

const testJWTSecret = "test-secret"

type fakeOrderService struct {
	order dailyorderdomain.DailyOrder
}

func (f *fakeOrderService) GetByID(ctx context.Context, id string) (*dailyorderdomain.DailyOrder, *[]dailyorderdomain.MealSlot, error) {
	order := f.order
	meals := []dailyorderdomain.MealSlot{}
	return &order, &meals, nil
}

func (f *fakeOrderService) ListBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]*dailyorderdomain.DailyOrder, error) {
	return nil, nil
}

func (f *fakeOrderService) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*dailyorderdomain.DailyOrder, error) {
	return nil, nil
}

func (f *fakeOrderService) ListByDate(ctx context.Context, date time.Time) ([]*dailyorderdomain.DailyOrder, error) {
	return nil, nil
}

func (f *fakeOrderService) Delete(ctx context.Context, id string) error {
	return nil
}

func (f *fakeOrderService) UpdateMealStatus(ctx context.Context, mealID string, status dailyorderdomain.MealStatus) (*dailyorderdomain.DailyOrder, error) {
	return nil, dailyorderdomain.ErrMealNotFound
}

func (f *fakeOrderService) BulkUpdateStatus(ctx context.Context, orderID string, status dailyorderdomain.MealStatus) (*dailyorderdomain.DailyOrder, error) {
	return nil, dailyorderdomain.ErrNotFound
}

func (f *fakeOrderService) LockDue(ctx context.Context) (int, error) {
	return 0, nil
}

type fakeRewardService struct {
	redeemCalls int
}

func (f *fakeRewardService) EarnForDelivery(ctx context.Context, customerID snowflake.ID, orderRef string) (*rewarddomain.Reward, error) {
	return nil, nil
}

func (f *fakeRewardService) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*rewarddomain.Reward, error) {
	return nil, nil
}

func (f *fakeRewardService) Balance(ctx context.Context, customerID snowflake.ID) (int64, error) {
	return 0, nil
}

func (f *fakeRewardService) Redeem(ctx context.Context, customerID snowflake.ID) (int64, error) {
	f.redeemCalls++
	return 0, rewarddomain.ErrNothingToRedeem
}

func (f *fakeRewardService) ExpireDue(ctx context.Context) (int, error) {
	return 0, nil
}

type fakePaymentService struct{}

func (f *fakePaymentService) HandleWebhook(ctx context.Context, provider string, body []byte, signature string) (*paymentdomain.Payment, error) {
	return nil, paymentdomain.ErrBadSignature
}

func (f *fakePaymentService) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*paymentdomain.Payment, error) {
	return nil, nil
}

func (f *fakePaymentService) GetByID(ctx context.Context, id string) (*paymentdomain.Payment, error) {
	return nil, paymentdomain.ErrNotFound
}

func newTestServer(t *testing.T, orders *fakeOrderService, rewards *fakeRewardService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(metrics.New())
	return NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{AuthJWTSecret: testJWTSecret},
		Log:        zap.NewNop(),
		OrderSvc:   orders,
		RewardSvc:  rewards,
		PaymentSvc: &fakePaymentService{},
	})
}

func bearerToken(t *testing.T, userID snowflake.ID, role customerdomain.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	s := newTestServer(t, &fakeOrderService{}, &fakeRewardService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/order", nil)
	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderOwnershipEnforced(t *testing.T) {
	owner := snowflake.ID(101)
	orders := &fakeOrderService{order: dailyorderdomain.DailyOrder{ID: 1, CustomerID: owner}}
	s := newTestServer(t, orders, &fakeRewardService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/order/1", nil)
	req.Header.Set("Authorization", bearerToken(t, snowflake.ID(999), customerdomain.RoleUser))
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/order/1", nil)
	req.Header.Set("Authorization", bearerToken(t, snowflake.ID(999), customerdomain.RoleAdmin))
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/order/1", nil)
	req.Header.Set("Authorization", bearerToken(t, owner, customerdomain.RoleUser))
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBusinessRuleErrorsMapToBadRequest(t *testing.T) {
	rewards := &fakeRewardService{}
	s := newTestServer(t, &fakeOrderService{}, rewards)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reward/redeem", nil)
	req.Header.Set("Authorization", bearerToken(t, snowflake.ID(101), customerdomain.RoleUser))
	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 1, rewards.redeemCalls)
	require.Contains(t, rec.Body.String(), "business_rule")
	require.Contains(t, rec.Body.String(), rewarddomain.ErrNothingToRedeem.Error())
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	s := newTestServer(t, &fakeOrderService{}, &fakeRewardService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.Header.Set("Authorization", bearerToken(t, snowflake.ID(101), customerdomain.RoleUser))
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Superadmin passes admin gates but the nil settings service is never
	// reached for users, which is the point of this test.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/order/1/status", bytes.NewBufferString(`{"status":"delivered"}`))
	req.Header.Set("Authorization", bearerToken(t, snowflake.ID(101), customerdomain.RoleUser))
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookAuthIsSignatureBased(t *testing.T) {
	s := newTestServer(t, &fakeOrderService{}, &fakeRewardService{})

	// No bearer token: the route must still reach the payment service,
	// which rejects the body on its HMAC check.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhooks/stripe", bytes.NewBufferString(`{}`))
	s.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "unauthorized")
}

func TestDeliveryPartnerCanUpdateMealStatus(t *testing.T) {
	s := newTestServer(t, &fakeOrderService{}, &fakeRewardService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/meal/42/status", bytes.NewBufferString(`{"status":"delivered"}`))
	req.Header.Set("Authorization", bearerToken(t, snowflake.ID(55), customerdomain.RoleDeliveryPartner))
	s.engine.ServeHTTP(rec, req)

	// The fake reports the meal as missing; the gate itself let the
	// partner through.
	require.Equal(t, http.StatusNotFound, rec.Code)
}
