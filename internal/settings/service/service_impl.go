package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	"github.com/mealora/mealora/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Defaults used when neither the settings table nor the override file has a value.
const (
	defaultPauseLimit        = 3
	defaultRenewalRetryLimit = 3
	defaultMealLockMinutes   = 120
	defaultRewardPoints      = 10
	defaultRewardTTLDays     = 90
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo repository.Repository[settingsdomain.Setting]

	mu        sync.RWMutex
	overrides map[string]map[string]any
}

func NewService(p Params) settingsdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settings.service"),
		repo:      repository.ProvideStore[settingsdomain.Setting](p.DB),
		overrides: map[string]map[string]any{},
	}
}

func (s *Service) Get(ctx context.Context, key string) (*settingsdomain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, settingsdomain.ErrInvalidKey
	}

	if value, ok := s.override(key); ok {
		return &settingsdomain.Setting{Key: key, Value: value}, nil
	}

	item, err := s.repo.FindOne(ctx, &settingsdomain.Setting{Key: key})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, settingsdomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) Put(ctx context.Context, key string, value map[string]any) (*settingsdomain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, settingsdomain.ErrInvalidKey
	}

	setting := &settingsdomain.Setting{
		Key:       key,
		Value:     datatypes.JSONMap(value),
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Save(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *Service) List(ctx context.Context) ([]*settingsdomain.Setting, error) {
	return s.repo.Find(ctx, &settingsdomain.Setting{})
}

// ReplaceOverrides swaps in values loaded from the local policy file.
func (s *Service) ReplaceOverrides(overrides map[string]map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if overrides == nil {
		overrides = map[string]map[string]any{}
	}
	s.overrides = overrides
}

func (s *Service) override(key string) (datatypes.JSONMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.overrides[key]
	if !ok {
		return nil, false
	}
	return datatypes.JSONMap(value), true
}

func (s *Service) PauseLimit(ctx context.Context) int {
	return int(s.intValue(ctx, settingsdomain.KeyPauseLimit, "limit", defaultPauseLimit))
}

func (s *Service) RenewalRetryLimit(ctx context.Context) int {
	return int(s.intValue(ctx, settingsdomain.KeyRenewalRetryLimit, "limit", defaultRenewalRetryLimit))
}

func (s *Service) MealLockWindow(ctx context.Context) time.Duration {
	minutes := s.intValue(ctx, settingsdomain.KeyMealLockWindow, "minutes", defaultMealLockMinutes)
	return time.Duration(minutes) * time.Minute
}

func (s *Service) RewardPoints(ctx context.Context) int64 {
	return s.intValue(ctx, settingsdomain.KeyRewardPoints, "points", defaultRewardPoints)
}

func (s *Service) RewardTTL(ctx context.Context) time.Duration {
	days := s.intValue(ctx, settingsdomain.KeyRewardTTLDays, "days", defaultRewardTTLDays)
	return time.Duration(days) * 24 * time.Hour
}

func (s *Service) RefundPolicy(ctx context.Context) settingsdomain.RefundPolicy {
	var policy settingsdomain.RefundPolicy
	s.decodeValue(ctx, settingsdomain.KeyRefundPolicy, &policy)
	return policy
}

func (s *Service) DiscountSlabs(ctx context.Context) []settingsdomain.DiscountSlab {
	var wrapper struct {
		Slabs []settingsdomain.DiscountSlab `json:"slabs"`
	}
	s.decodeValue(ctx, settingsdomain.KeyDiscountSlabs, &wrapper)
	return wrapper.Slabs
}

func (s *Service) intValue(ctx context.Context, key, field string, def int64) int64 {
	setting, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	raw, ok := setting.Value[field]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

func (s *Service) decodeValue(ctx context.Context, key string, out any) {
	setting, err := s.Get(ctx, key)
	if err != nil {
		return
	}
	raw, err := json.Marshal(setting.Value)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn("malformed setting value", zap.String("key", key), zap.Error(err))
	}
}
