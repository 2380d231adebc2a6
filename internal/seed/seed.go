// Package seed bootstraps a fresh database with the rows the service
// expects to exist: the admin account and the policy settings.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	cartdomain "github.com/mealora/mealora/internal/cart/domain"
	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	customerdomain "github.com/mealora/mealora/internal/customer/domain"
	dailyorderdomain "github.com/mealora/mealora/internal/dailyorder/domain"
	deliverydomain "github.com/mealora/mealora/internal/delivery/domain"
	notificationdomain "github.com/mealora/mealora/internal/notification/domain"
	paymentdomain "github.com/mealora/mealora/internal/payment/domain"
	rewarddomain "github.com/mealora/mealora/internal/reward/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
)

const (
	defaultAdminEmail = "admin@mealora.app"
	defaultAdminName  = "Mealora Admin"
)

// AutoMigrate builds the schema with gorm for engines the SQL migrations
// do not target (sqlite in local and test setups).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&customerdomain.Customer{},
		&settingsdomain.Setting{},
		&walletdomain.Wallet{},
		&walletdomain.Entry{},
		&catalogdomain.Product{},
		&catalogdomain.Program{},
		&catalogdomain.Restaurant{},
		&catalogdomain.MenuItem{},
		&cartdomain.Cart{},
		&cartdomain.CartItem{},
		&subscriptiondomain.Subscription{},
		&dailyorderdomain.DailyOrder{},
		&dailyorderdomain.MealSlot{},
		&deliverydomain.Partner{},
		&deliverydomain.Delivery{},
		&rewarddomain.Reward{},
		&paymentdomain.Payment{},
		&notificationdomain.Notification{},
	)
}

// EnsureDefaults seeds the admin user and the policy settings. Existing
// rows are left alone so operator edits survive restarts.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAdmin(ctx, tx, node); err != nil {
			return err
		}
		return ensureSettings(ctx, tx)
	})
}

func ensureAdmin(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var admin customerdomain.Customer
	err := tx.WithContext(ctx).Where("email = ?", defaultAdminEmail).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin = customerdomain.Customer{
		ID:    node.Generate(),
		Name:  defaultAdminName,
		Email: defaultAdminEmail,
		Role:  customerdomain.RoleAdmin,
	}
	return tx.WithContext(ctx).Create(&admin).Error
}

func ensureSettings(ctx context.Context, tx *gorm.DB) error {
	defaults := map[string]datatypes.JSONMap{
		settingsdomain.KeyPauseLimit:        {"limit": 3},
		settingsdomain.KeyRenewalRetryLimit: {"limit": 3},
		settingsdomain.KeyMealLockWindow:    {"minutes": 120},
		settingsdomain.KeyRewardPoints:      {"points": 10},
		settingsdomain.KeyRewardTTLDays:     {"days": 90},
		settingsdomain.KeyRefundPolicy: {
			"penalty_per_pending_day": 0,
			"min_refund":              0,
		},
		settingsdomain.KeyDiscountSlabs: {
			"slabs": []map[string]any{
				{"min_days": 7, "discount_pc": 0},
				{"min_days": 15, "discount_pc": 5},
				{"min_days": 30, "discount_pc": 10},
			},
		},
	}

	for key, value := range defaults {
		var existing settingsdomain.Setting
		err := tx.WithContext(ctx).Where("key = ?", key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.WithContext(ctx).Create(&settingsdomain.Setting{Key: key, Value: value}).Error; err != nil {
			return err
		}
	}
	return nil
}
