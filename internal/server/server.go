package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/mealora/mealora/internal/config"
	"github.com/mealora/mealora/internal/metrics"
	"github.com/mealora/mealora/internal/notification/realtime"
	"go.uber.org/fx"
	"go.uber.org/zap"
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

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(m.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", m.Handler())

	return r
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	genID           *snowflake.Node
	hub             *realtime.Hub
	customerSvc     customerdomain.Service
	catalogSvc      catalogdomain.Service
	cartSvc         cartdomain.Service
	walletSvc       walletdomain.Service
	subscriptionSvc subscriptiondomain.Service
	orderSvc        dailyorderdomain.Service
	deliverySvc     deliverydomain.Service
	rewardSvc       rewarddomain.Service
	paymentSvc      paymentdomain.Service
	notificationSvc notificationdomain.Service
	settingsSvc     settingsdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	DB              *gorm.DB
	GenID           *snowflake.Node
	Hub             *realtime.Hub `optional:"true"`
	CustomerSvc     customerdomain.Service
	CatalogSvc      catalogdomain.Service
	CartSvc         cartdomain.Service
	WalletSvc       walletdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	OrderSvc        dailyorderdomain.Service
	DeliverySvc     deliverydomain.Service
	RewardSvc       rewarddomain.Service
	PaymentSvc      paymentdomain.Service
	NotificationSvc notificationdomain.Service
	SettingsSvc     settingsdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		db:              p.DB,
		genID:           p.GenID,
		hub:             p.Hub,
		customerSvc:     p.CustomerSvc,
		catalogSvc:      p.CatalogSvc,
		cartSvc:         p.CartSvc,
		walletSvc:       p.WalletSvc,
		subscriptionSvc: p.SubscriptionSvc,
		orderSvc:        p.OrderSvc,
		deliverySvc:     p.DeliverySvc,
		rewardSvc:       p.RewardSvc,
		paymentSvc:      p.PaymentSvc,
		notificationSvc: p.NotificationSvc,
		settingsSvc:     p.SettingsSvc,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Webhooks authenticate with an HMAC signature, not a bearer token.
	s.engine.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	authed := s.engine.Group("", s.AuthRequired())

	sub := authed.Group("/subscription")
	sub.POST("", s.CreateSubscription)
	sub.GET("", s.ListSubscriptions)
	sub.GET("/:id", s.GetSubscription)
	sub.DELETE("/:id", RequireAdmin(), s.DeleteSubscription)
	sub.POST("/:id/swap", s.SwapMeal)
	sub.POST("/:id/cancel", s.CancelSubscription)
	sub.POST("/:id/pause", s.PauseSubscription)
	sub.POST("/:id/resume", s.ResumeSubscription)

	freeze := authed.Group("/freeze")
	freeze.POST("/:id", s.FreezeSubscription)

	order := authed.Group("/order")
	order.GET("", s.ListOrders)
	order.GET("/:id", s.GetOrder)
	order.DELETE("/:id", RequireAdmin(), s.DeleteOrder)
	order.PATCH("/:id/status", RequireRole(customerdomain.RoleAdmin, customerdomain.RoleDeliveryPartner), s.BulkUpdateOrderStatus)

	// Meals get their own namespace; a static "meal" segment under /order
	// would collide with the :id wildcard in gin's route tree.
	meal := authed.Group("/meal")
	meal.PATCH("/:id/status", RequireRole(customerdomain.RoleAdmin, customerdomain.RoleDeliveryPartner), s.UpdateMealStatus)

	wallet := authed.Group("/wallet")
	wallet.GET("", s.GetWallet)
	wallet.GET("/history", s.WalletHistory)
	wallet.POST("/topup", s.TopupWallet)

	cart := authed.Group("/cart")
	cart.GET("", s.GetCart)
	cart.POST("/items", s.AddCartItem)
	cart.PATCH("/items/:id", s.UpdateCartItem)
	cart.DELETE("/items/:id", s.RemoveCartItem)
	cart.DELETE("", s.ClearCart)

	reward := authed.Group("/reward")
	reward.GET("", s.ListRewards)
	reward.GET("/balance", s.RewardBalance)
	reward.POST("/redeem", s.RedeemRewards)

	product := authed.Group("/product")
	product.GET("", s.ListProducts)
	product.GET("/:id", s.GetProduct)
	product.POST("", RequireAdmin(), s.CreateProduct)
	product.DELETE("/:id", RequireAdmin(), s.DeleteProduct)

	program := authed.Group("/program")
	program.GET("", s.ListPrograms)
	program.GET("/:id", s.GetProgram)
	program.POST("", RequireAdmin(), s.CreateProgram)

	restaurant := authed.Group("/restaurant")
	restaurant.GET("", s.ListRestaurants)
	restaurant.GET("/:id", s.GetRestaurant)
	restaurant.GET("/:id/menu", s.ListMenu)
	restaurant.POST("", RequireAdmin(), s.CreateRestaurant)
	restaurant.POST("/:id/menu", RequireAdmin(), s.AddMenuItem)

	partner := authed.Group("/partner")
	partner.POST("", RequireAdmin(), s.CreatePartner)
	partner.GET("", RequireAdmin(), s.ListPartners)
	partner.GET("/:id", s.GetPartner)
	partner.PATCH("/:id/status", RequireRole(customerdomain.RoleAdmin, customerdomain.RoleDeliveryPartner), s.SetPartnerStatus)

	delivery := authed.Group("/delivery")
	delivery.GET("/:id", s.GetDelivery)
	delivery.POST("/:id/assign", RequireAdmin(), s.AssignDelivery)
	delivery.POST("/:id/auto-assign", RequireAdmin(), s.AutoAssignDelivery)
	delivery.PATCH("/:id/status", RequireRole(customerdomain.RoleAdmin, customerdomain.RoleDeliveryPartner), s.UpdateDeliveryStatus)

	notification := authed.Group("/notification")
	notification.GET("", s.ListNotifications)
	notification.PATCH("/:id/read", s.MarkNotificationRead)
	notification.DELETE("/:id", s.DeleteNotification)

	authed.GET("/ws", s.NotificationSocket)

	payment := authed.Group("/payment")
	payment.GET("", s.ListPayments)
	payment.GET("/:id", RequireAdmin(), s.GetPayment)

	settings := authed.Group("/settings", RequireAdmin())
	settings.GET("", s.ListSettings)
	settings.GET("/:key", s.GetSetting)
	settings.PUT("/:key", s.PutSetting)

	customer := authed.Group("/customer")
	customer.POST("", RequireAdmin(), s.CreateCustomer)
	customer.GET("", RequireAdmin(), s.ListCustomers)
	customer.GET("/:id", s.GetCustomer)
	customer.DELETE("/:id", RequireAdmin(), s.DeleteCustomer)
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
