package settings

import (
	"context"

	"github.com/mealora/mealora/internal/config"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	"github.com/mealora/mealora/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(service.NewService),
	fx.Invoke(watchOverrides),
)

func watchOverrides(lc fx.Lifecycle, cfg config.Config, svc settingsdomain.Service) {
	impl, ok := svc.(*service.Service)
	if !ok || cfg.SettingsOverridePath == "" {
		return
	}

	var stop func() error
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			stop, err = impl.WatchOverrides(cfg.SettingsOverridePath)
			return err
		},
		OnStop: func(context.Context) error {
			if stop == nil {
				return nil
			}
			return stop()
		},
	})
}
