package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/mealora/mealora/internal/catalog/domain"
	"github.com/mealora/mealora/internal/clock"
	dailyorderdomain "github.com/mealora/mealora/internal/dailyorder/domain"
	notificationdomain "github.com/mealora/mealora/internal/notification/domain"
	paymentdomain "github.com/mealora/mealora/internal/payment/domain"
	settingsdomain "github.com/mealora/mealora/internal/settings/domain"
	"github.com/mealora/mealora/internal/subscription/domain"
	walletdomain "github.com/mealora/mealora/internal/wallet/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Orders   dailyorderdomain.Repository
	Wallet   walletdomain.Service
	Catalog  catalogdomain.Service
	Settings settingsdomain.Service
	Gateway  paymentdomain.Gateway
	Notifier notificationdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	orders   dailyorderdomain.Repository
	wallet   walletdomain.Service
	catalog  catalogdomain.Service
	settings settingsdomain.Service
	gateway  paymentdomain.Gateway
	notifier notificationdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		orders:   p.Orders,
		wallet:   p.Wallet,
		catalog:  p.Catalog,
		settings: p.Settings,
		gateway:  p.Gateway,
		notifier: p.Notifier,
	}
}

var slotOrder = []dailyorderdomain.Slot{
	dailyorderdomain.SlotBreakfast,
	dailyorderdomain.SlotLunch,
	dailyorderdomain.SlotDinner,
}

var slotHour = map[dailyorderdomain.Slot]int{
	dailyorderdomain.SlotBreakfast: 8,
	dailyorderdomain.SlotLunch:     13,
	dailyorderdomain.SlotDinner:    20,
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, req domain.CreateRequest) (*domain.Subscription, error) {
	customerID := actor.CustomerID
	if req.CustomerID != "" {
		id, err := snowflake.ParseString(req.CustomerID)
		if err != nil {
			return nil, domain.ErrInvalidCustomer
		}
		if id != actor.CustomerID && !actor.Admin {
			return nil, domain.ErrForbidden
		}
		customerID = id
	}
	if customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}

	program, err := s.catalog.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return nil, domain.ErrInvalidProgram
	}
	if program.DurationDays <= 0 || program.MealsPerDay <= 0 {
		return nil, domain.ErrInvalidProgram
	}

	if req.PaymentMethod != "wallet" && req.PaymentMethod != "card" {
		return nil, domain.ErrInvalidPaymentMethod
	}

	now := s.clock.Now()
	start := dateOnly(now)
	if req.StartDate != "" {
		t, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			t, err = time.Parse("2006-01-02", req.StartDate)
			if err != nil {
				return nil, fmt.Errorf("parse start_date: %w", err)
			}
		}
		start = dateOnly(t.UTC())
	}
	end := start.AddDate(0, 0, program.DurationDays)

	price := s.discounted(ctx, program.Price, program.DurationDays)

	sub := &domain.Subscription{
		ID:           s.genID.Generate(),
		CustomerID:   customerID,
		ProgramID:    program.ID,
		PlanName:     program.Name,
		StartDate:    start,
		EndDate:      end,
		BillingCycle: program.BillingCycle,
		Price:        price,
		Currency:     program.Currency,
		MealsPerDay:  program.MealsPerDay,
		Status:       domain.StatusActive,
		AutoRenew:    req.AutoRenew,
		CreatedAt:    now,
	}

	// Card charges happen before the transaction opens. The gateway call is
	// not part of our store and cannot roll back with it.
	if req.PaymentMethod == "card" {
		res, err := s.gateway.Charge(ctx, paymentdomain.ChargeRequest{
			CustomerID: customerID,
			Amount:     price,
			Currency:   program.Currency,
			Reference:  sub.ID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("gateway charge: %w", err)
		}
		if !res.Succeeded {
			return nil, paymentdomain.ErrGatewayRejected
		}
		sub.PaymentGateway = s.gateway.Name()
		sub.TransactionID = res.TransactionID
	} else {
		sub.PaymentGateway = "wallet"
	}

	// Payment debit, subscription insert and the daily-order batch commit
	// together or not at all.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.PaymentMethod == "wallet" {
			entry, err := s.wallet.DebitTx(ctx, tx, customerID, price, "subscription:"+sub.ID.String())
			if err != nil {
				return err
			}
			sub.TransactionID = entry.ID.String()
		}
		paidAt := now
		sub.PaymentStatus = "paid"
		sub.AmountPaid = price
		sub.PaymentDate = &paidAt

		domain.Recompute(sub, now)
		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return err
		}
		return s.createOrders(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, customerID, notificationdomain.EventNew, "Subscription started",
		fmt.Sprintf("%s plan active until %s", sub.PlanName, sub.EndDate.Format("2006-01-02")),
		map[string]any{"subscription_id": sub.ID.String()})

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int64("amount", price),
	)
	return sub, nil
}

func (s *Service) ActivatePaid(ctx context.Context, customerID snowflake.ID, programID, gatewayName, transactionID string) (*domain.Subscription, error) {
	if customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	program, err := s.catalog.GetProgram(ctx, programID)
	if err != nil {
		return nil, domain.ErrInvalidProgram
	}

	now := s.clock.Now()
	start := dateOnly(now)
	price := s.discounted(ctx, program.Price, program.DurationDays)

	sub := &domain.Subscription{
		ID:             s.genID.Generate(),
		CustomerID:     customerID,
		ProgramID:      program.ID,
		PlanName:       program.Name,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, program.DurationDays),
		BillingCycle:   program.BillingCycle,
		Price:          price,
		Currency:       program.Currency,
		MealsPerDay:    program.MealsPerDay,
		Status:         domain.StatusActive,
		PaymentGateway: gatewayName,
		TransactionID:  transactionID,
		PaymentStatus:  "paid",
		AmountPaid:     price,
		PaymentDate:    &now,
		CreatedAt:      now,
	}
	domain.Recompute(sub, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return err
		}
		return s.createOrders(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, customerID, notificationdomain.EventNew, "Subscription started",
		fmt.Sprintf("%s plan active until %s", sub.PlanName, sub.EndDate.Format("2006-01-02")),
		map[string]any{"subscription_id": sub.ID.String()})
	return sub, nil
}

// createOrders bulk-inserts one daily order per plan day, each carrying one
// meal slot per meal of the day.
func (s *Service) createOrders(ctx context.Context, tx *gorm.DB, sub *domain.Subscription) error {
	orders := make([]*dailyorderdomain.DailyOrder, 0, sub.DurationDays)
	meals := make([]*dailyorderdomain.MealSlot, 0, sub.DurationDays*sub.MealsPerDay)

	for d := 0; d < sub.DurationDays; d++ {
		date := sub.StartDate.AddDate(0, 0, d)
		order := &dailyorderdomain.DailyOrder{
			ID:             s.genID.Generate(),
			SubscriptionID: sub.ID,
			CustomerID:     sub.CustomerID,
			Date:           date,
			OrderStatus:    dailyorderdomain.OrderConfirmed,
			PaymentStatus:  "paid",
			CreatedAt:      sub.CreatedAt,
		}
		orders = append(orders, order)

		for m := 0; m < sub.MealsPerDay; m++ {
			slot := slotOrder[m%len(slotOrder)]
			expected := time.Date(date.Year(), date.Month(), date.Day(), slotHour[slot], 0, 0, 0, time.UTC)
			meals = append(meals, &dailyorderdomain.MealSlot{
				ID:                   s.genID.Generate(),
				DailyOrderID:         order.ID,
				Slot:                 slot,
				Quantity:             1,
				Status:               dailyorderdomain.MealScheduled,
				ExpectedDeliveryTime: &expected,
				CreatedAt:            sub.CreatedAt,
			})
		}
	}

	if err := s.orders.InsertOrders(ctx, tx, orders); err != nil {
		return err
	}
	return s.orders.InsertMeals(ctx, tx, meals)
}

// discounted applies the best matching duration slab to the plan price.
func (s *Service) discounted(ctx context.Context, price int64, durationDays int) int64 {
	var pc float64
	for _, slab := range s.settings.DiscountSlabs(ctx) {
		if durationDays >= slab.MinDays && slab.DiscountPc > pc {
			pc = slab.DiscountPc
		}
	}
	if pc <= 0 {
		return price
	}
	return price - int64(float64(price)*pc/100)
}

func (s *Service) GetByID(ctx context.Context, actor domain.Actor, id string) (*domain.Subscription, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.MayAccess(sub) {
		return nil, domain.ErrForbidden
	}
	return sub, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]*domain.Subscription, error) {
	return s.repo.ListByCustomer(ctx, s.db, customerID)
}

func (s *Service) List(ctx context.Context) ([]*domain.Subscription, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	sub, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, s.db, sub.ID)
}

func (s *Service) Freeze(ctx context.Context, actor domain.Actor, id string, req domain.FreezeRequest) (*domain.Subscription, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.MayAccess(sub) {
		return nil, domain.ErrForbidden
	}
	if sub.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, domain.ErrInvalidWindow
	}

	// Overlap with past windows or the remaining term is not rejected, only
	// logged. Known leniency carried over from the previous system.
	for _, w := range sub.FreezeHistory {
		if req.StartDate.Before(w.EndDate) && w.StartDate.Before(req.EndDate) {
			s.log.Warn("freeze window overlaps existing freeze",
				zap.String("subscription_id", sub.ID.String()),
				zap.Time("start", req.StartDate),
				zap.Time("end", req.EndDate),
			)
			break
		}
	}

	days := domain.CeilDays(req.StartDate, req.EndDate)
	now := s.clock.Now()

	sub.FreezeHistory = append(sub.FreezeHistory, domain.FreezeWindow{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	})
	sub.FrozenDays += days
	sub.EndDate = sub.EndDate.AddDate(0, 0, days)
	sub.Status = domain.StatusFreeze
	domain.Recompute(sub, now)

	if err := s.repo.Save(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Swap(ctx context.Context, actor domain.Actor, id string, req domain.SwapRequest) (*domain.Subscription, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.MayAccess(sub) {
		return nil, domain.ErrForbidden
	}
	if sub.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	if req.FromMeal == "" || req.ToMeal == "" || req.FromMeal == req.ToMeal {
		return nil, domain.ErrInvalidSwap
	}
	if req.Date.Before(sub.StartDate) || !req.Date.Before(sub.EndDate) {
		return nil, domain.ErrInvalidSwap
	}

	sub.SwapHistory = append(sub.SwapHistory, domain.SwapRecord{
		Date:     req.Date,
		FromMeal: req.FromMeal,
		ToMeal:   req.ToMeal,
	})
	sub.SwappableMeals++
	domain.Recompute(sub, s.clock.Now())

	if err := s.repo.Save(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id string, reason string) (*domain.CancelResult, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.MayAccess(sub) {
		return nil, domain.ErrForbidden
	}
	if sub.Status == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	totalDays := sub.DurationDays
	completed := domain.CeilDays(sub.StartDate, now)
	if completed > totalDays {
		completed = totalDays
	}
	pending := totalDays - completed

	policy := s.settings.RefundPolicy(ctx)
	perDay := policy.PenaltyPerPendingDay
	if perDay <= 0 && totalDays > 0 {
		perDay = sub.Price / int64(totalDays)
	}
	penalty := perDay * int64(pending)
	refund := sub.Price - penalty
	if refund < 0 {
		refund = 0
	}
	if refund > 0 && refund < policy.MinRefund {
		refund = 0
	}

	sub.Status = domain.StatusCancelled
	sub.CancellationDate = &now
	sub.CancellationReason = reason
	sub.CancellationStatus = "processed"
	sub.CompletedDays = completed
	sub.PendingDays = pending
	sub.PenaltyAmount = penalty
	sub.RefundAmount = refund
	domain.Recompute(sub, now)

	if err := s.repo.Save(ctx, s.db, sub); err != nil {
		return nil, err
	}

	// Refund credit is a separate write. A failure here leaves the
	// cancellation committed; the wallet entry can be replayed from the
	// recorded refund amount.
	if refund > 0 {
		if _, err := s.wallet.Credit(ctx, sub.CustomerID, refund, walletdomain.EntryTypeRefund, "cancel:"+sub.ID.String()); err != nil {
			s.log.Error("refund credit failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Int64("refund", refund),
				zap.Error(err),
			)
			return nil, err
		}
	}

	s.notify(ctx, sub.CustomerID, notificationdomain.EventNew, "Subscription cancelled",
		fmt.Sprintf("%s cancelled, refund %d %s", sub.PlanName, refund, sub.Currency),
		map[string]any{"subscription_id": sub.ID.String(), "refund": refund})

	return &domain.CancelResult{
		CompletedDays: completed,
		PendingDays:   pending,
		Penalty:       penalty,
		Refund:        refund,
	}, nil
}

func (s *Service) Pause(ctx context.Context, actor domain.Actor, id string) (*domain.Subscription, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.MayAccess(sub) {
		return nil, domain.ErrForbidden
	}
	if sub.Status != domain.StatusActive {
		return nil, domain.ErrNotActive
	}
	if limit := s.settings.PauseLimit(ctx); sub.PauseCount >= limit {
		return nil, domain.ErrPauseLimitReached
	}

	sub.Status = domain.StatusPaused
	sub.IsPaused = true
	sub.PauseCount++
	domain.Recompute(sub, s.clock.Now())

	if err := s.repo.Save(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Resume(ctx context.Context, actor domain.Actor, id string) (*domain.Subscription, error) {
	sub, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.MayAccess(sub) {
		return nil, domain.ErrForbidden
	}
	if sub.Status != domain.StatusPaused {
		return nil, domain.ErrNotActive
	}

	sub.Status = domain.StatusActive
	sub.IsPaused = false
	domain.Recompute(sub, s.clock.Now())

	if err := s.repo.Save(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) RecordDelivery(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	sub, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	sub.ConsumedMeals++
	sub.DeliveredMeals++
	domain.Recompute(sub, s.clock.Now())
	return s.repo.Save(ctx, tx, sub)
}

func (s *Service) UnfreezeDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	frozen, err := s.repo.ListByStatus(ctx, s.db, domain.StatusFreeze)
	if err != nil {
		return 0, err
	}

	var n int
	for _, sub := range frozen {
		if !sub.LastFreezeEnded(now) {
			continue
		}
		sub.Status = domain.StatusActive
		domain.Recompute(sub, now)
		if err := s.repo.Save(ctx, s.db, sub); err != nil {
			s.log.Error("unfreeze save failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// RenewDue charges every auto-renewing subscription past its end date. A
// failed charge bumps the attempt counter; once the retry limit is hit the
// subscription moves to renewal_failed instead of silently retrying forever.
func (s *Service) RenewDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.ListRenewable(ctx, s.db, now)
	if err != nil {
		return 0, err
	}
	retryLimit := s.settings.RenewalRetryLimit(ctx)

	var renewed int
	for _, sub := range due {
		if err := s.charge(ctx, sub); err != nil {
			sub.RenewalAttempts++
			s.log.Warn("renewal charge failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Int("attempt", sub.RenewalAttempts),
				zap.Error(err),
			)
			if sub.RenewalAttempts >= retryLimit {
				sub.Status = domain.StatusRenewalFailed
				s.notify(ctx, sub.CustomerID, notificationdomain.EventNew, "Renewal failed",
					fmt.Sprintf("%s could not be renewed after %d attempts", sub.PlanName, sub.RenewalAttempts),
					map[string]any{"subscription_id": sub.ID.String()})
			}
			sub.UpdatedAt = now
			if err := s.repo.Save(ctx, s.db, sub); err != nil {
				s.log.Error("renewal save failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
			}
			continue
		}

		term := sub.DurationDays
		sub.StartDate = dateOnly(now)
		sub.EndDate = sub.StartDate.AddDate(0, 0, term)
		sub.ConsumedMeals = 0
		sub.DeliveredMeals = 0
		sub.SwappableMeals = 0
		sub.RenewalAttempts = 0
		sub.AmountPaid = sub.Price
		paidAt := now
		sub.PaymentDate = &paidAt
		sub.PaymentStatus = "paid"
		domain.Recompute(sub, now)

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Save(ctx, tx, sub); err != nil {
				return err
			}
			return s.createOrders(ctx, tx, sub)
		})
		if err != nil {
			s.log.Error("renewal save failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
			continue
		}
		renewed++
	}
	return renewed, nil
}

// charge replays the original payment method for a renewal.
func (s *Service) charge(ctx context.Context, sub *domain.Subscription) error {
	if sub.PaymentGateway == "wallet" {
		_, err := s.wallet.Debit(ctx, sub.CustomerID, sub.Price, "renewal:"+sub.ID.String())
		return err
	}
	res, err := s.gateway.Charge(ctx, paymentdomain.ChargeRequest{
		CustomerID: sub.CustomerID,
		Amount:     sub.Price,
		Currency:   sub.Currency,
		Reference:  "renewal:" + sub.ID.String(),
	})
	if err != nil {
		return err
	}
	if !res.Succeeded {
		return paymentdomain.ErrGatewayRejected
	}
	sub.TransactionID = res.TransactionID
	return nil
}

func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expiring, err := s.repo.ListExpiring(ctx, s.db, now)
	if err != nil {
		return 0, err
	}

	var n int
	for _, sub := range expiring {
		sub.Status = domain.StatusExpired
		sub.UpdatedAt = now
		if err := s.repo.Save(ctx, s.db, sub); err != nil {
			s.log.Error("expire save failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.Subscription, error) {
	sid, err := snowflake.ParseString(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.FindByID(ctx, s.db, sid)
}

func (s *Service) notify(ctx context.Context, recipient snowflake.ID, event notificationdomain.Event, title, body string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, notificationdomain.Message{
		RecipientID: recipient,
		Event:       event,
		Title:       title,
		Body:        body,
		Data:        data,
	}); err != nil {
		s.log.Warn("notification dispatch failed", zap.Error(err))
	}
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
