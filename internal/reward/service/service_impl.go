package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mealora/mealora/internal/clock"
	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/reward/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   *config.Config
	Settings settingsdomain.Service
	Wallet   walletdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	currency string
	settings settingsdomain.Service
	wallet   walletdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reward.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		currency: p.Config.DefaultCurrency,
		settings: p.Settings,
		wallet:   p.Wallet,
	}
}

func (s *Service) EarnForDelivery(ctx context.Context, customerID snowflake.ID, orderRef string) (*domain.Reward, error) {
	now := s.clock.Now()
	reward := &domain.Reward{
		ID:         s.genID.Generate(),
		CustomerID: customerID,
		Points:     s.settings.RewardPoints(ctx),
		Status:     domain.StatusEarned,
		Source:     orderRef,
		ExpiresAt:  now.Add(s.settings.RewardTTL(ctx)),
		CreatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(reward).Error; err != nil {
		return nil, err
	}
	return reward, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*domain.Reward, error) {
	var rewards []*domain.Reward
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&rewards).Error
	return rewards, err
}

func (s *Service) Balance(ctx context.Context, customerID snowflake.ID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&domain.Reward{}).
		Where("customer_id = ? AND status = ? AND expires_at > ?", customerID, domain.StatusEarned, s.clock.Now()).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return total, err
}

// Redeem flips every live grant to redeemed and credits the sum to the wallet
// in one transaction.
func (s *Service) Redeem(ctx context.Context, customerID snowflake.ID) (int64, error) {
	now := s.clock.Now()
	var total int64

	if _, err := s.wallet.EnsureWallet(ctx, customerID, s.currency); err != nil {
		return 0, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rewards []*domain.Reward
		err := tx.Where("customer_id = ? AND status = ? AND expires_at > ?", customerID, domain.StatusEarned, now).
			Find(&rewards).Error
		if err != nil {
			return err
		}
		if len(rewards) == 0 {
			return domain.ErrNothingToRedeem
		}

		for _, reward := range rewards {
			total += reward.Points
			reward.Status = domain.StatusRedeemed
			reward.RedeemedAt = &now
			reward.UpdatedAt = now
			if err := tx.Save(reward).Error; err != nil {
				return err
			}
		}

		_, err = s.wallet.CreditTx(ctx, tx, customerID, total, walletdomain.EntryTypeTopup, "reward_redeem")
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("rewards redeemed",
		zap.String("customer_id", customerID.String()),
		zap.Int64("points", total),
	)
	return total, nil
}

func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	res := s.db.WithContext(ctx).
		Model(&domain.Reward{}).
		Where("status = ? AND expires_at <= ?", domain.StatusEarned, now).
		Updates(map[string]any{"status": domain.StatusExpired, "updated_at": now})
	return int(res.RowsAffected), res.Error
}
