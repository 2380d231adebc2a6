package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/payment/domain"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        *config.Config
	Catalog       catalogdomain.Service
	Subscriptions subscriptiondomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	secret  []byte
	catalog catalogdomain.Service
	subs    subscriptiondomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		secret:  []byte(p.Config.WebhookSecret),
		catalog: p.Catalog,
		subs:    p.Subscriptions,
	}
}

// HandleWebhook verifies the HMAC signature, records the event and activates
// the purchased plan on payment_intent.succeeded.
func (s *Service) HandleWebhook(ctx context.Context, provider string, body []byte, signature string) (*domain.Payment, error) {
	if !s.verify(body, signature) {
		return nil, domain.ErrBadSignature
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if event.Type != "payment_intent.succeeded" {
		return nil, domain.ErrUnknownEventType
	}

	customerID, err := metadataID(event.Metadata, "userId")
	if err != nil {
		return nil, err
	}
	planDuration, err := metadataInt(event.Metadata, "planDuration")
	if err != nil {
		return nil, err
	}
	program, err := s.programByDuration(ctx, planDuration)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:         s.genID.Generate(),
		CustomerID: customerID,
		Amount:     event.Amount,
		Currency:   event.Currency,
		Method:     "card",
		Gateway:    provider,
		Reference:  event.ID,
		Status:     domain.PaymentSucceeded,
		Metadata:   datatypes.JSONMap(event.Metadata),
		CreatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}

	sub, err := s.subs.ActivatePaid(ctx, customerID, program.ID.String(), provider, event.ID)
	if err != nil {
		s.log.Error("webhook activation failed",
			zap.String("payment_id", payment.ID.String()),
			zap.String("customer_id", customerID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("webhook processed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("subscription_id", sub.ID.String()),
	)
	return payment, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	pid, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var payment domain.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (s *Service) verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

func (s *Service) programByDuration(ctx context.Context, days int) (*catalogdomain.Program, error) {
	programs, err := s.catalog.ListPrograms(ctx)
	if err != nil {
		return nil, err
	}
	for _, program := range programs {
		if program.Active && program.DurationDays == days {
			return program, nil
		}
	}
	return nil, catalogdomain.ErrProgramNotFound
}

func metadataID(metadata map[string]any, key string) (snowflake.ID, error) {
	raw, ok := metadata[key].(string)
	if !ok {
		return 0, fmt.Errorf("webhook metadata missing %s", key)
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, fmt.Errorf("webhook metadata %s: %w", key, err)
	}
	return id, nil
}

func metadataInt(metadata map[string]any, key string) (int, error) {
	switch v := metadata[key].(type) {
	case float64:
		return int(v), nil
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return 0, fmt.Errorf("webhook metadata %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("webhook metadata missing %s", key)
	}
}
