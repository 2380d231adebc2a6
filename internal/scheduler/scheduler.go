// Package scheduler runs the recurring sweeps: renewals, unfreezes, expiry,
// reward expiry and meal locking. Each job takes a redis lock so only one
// replica runs a given sweep per window.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mealora/mealora/internal/config"
	dailyorderdomain "github.com/mealora/mealora/internal/dailyorder/domain"
	"github.com/mealora/mealora/internal/locks"
	"github.com/mealora/mealora/internal/metrics"
	rewarddomain "github.com/mealora/mealora/internal/reward/domain"
	subscriptiondomain "github.com/mealora/mealora/internal/subscription/domain"
)

const lockTTL = 10 * time.Minute

type Params struct {
	fx.In

	Config        config.Config
	Log           *zap.Logger
	Locker        *locks.Locker
	Metrics       *metrics.Metrics
	Subscriptions subscriptiondomain.Service
	Orders        dailyorderdomain.Service
	Rewards       rewarddomain.Service
}

type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	locker  *locks.Locker
	metrics *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		log:     p.Log.Named("scheduler"),
		locker:  p.Locker,
		metrics: p.Metrics,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"renew_due", p.Config.Cron.RenewDue, p.Subscriptions.RenewDue},
		{"unfreeze_due", p.Config.Cron.UnfreezeDue, p.Subscriptions.UnfreezeDue},
		{"expire_due", p.Config.Cron.UnfreezeDue, p.Subscriptions.ExpireDue},
		{"reward_expiry", p.Config.Cron.RewardExpiry, p.Rewards.ExpireDue},
		{"meal_lock", p.Config.Cron.MealLock, p.Orders.LockDue},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(job.name, job.run) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) runJob(name string, run func(context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTTL)
	defer cancel()

	token, ok, err := s.locker.TryLock(ctx, "sweep:"+name, lockTTL)
	if err != nil {
		s.log.Error("sweep lock failed", zap.String("job", name), zap.Error(err))
		return
	}
	if !ok {
		s.log.Debug("sweep already running elsewhere", zap.String("job", name))
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, "sweep:"+name, token); err != nil {
			s.log.Warn("sweep lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	start := time.Now()
	var touched int
	err = s.metrics.ObserveJob(name, func() error {
		var err error
		touched, err = run(ctx)
		return err
	})
	if err != nil {
		s.log.Error("sweep failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.log.Info("sweep finished",
		zap.String("job", name),
		zap.Int("touched", touched),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: s.Stop,
		})
	}),
)
