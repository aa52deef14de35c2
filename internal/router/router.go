package router

import (
	"time"

	"postpilot/config"
	"postpilot/internal/handler"
	"postpilot/internal/middleware"
	"postpilot/internal/pricing"
	"postpilot/internal/repository"
	"postpilot/internal/service"
	"postpilot/pkg/gateway"
	"postpilot/pkg/geoip"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, gw gateway.Gateway) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	calc := pricing.NewCalculator(pricing.Default())
	detector := geoip.New(cfg.GeoIP.BaseURL, cfg.GeoIP.Timeout, cfg.GeoIP.CacheTTL)

	// Services
	subSvc := service.NewSubscriptionService(subRepo)
	referralSvc := service.NewReferralService(referralRepo, userRepo, affiliateRepo, service.LogMailer{}, cfg.Referral.CodeAttempts, cfg.Referral.MaxInviteEmails)
	commissionSvc := service.NewCommissionService(commissionRepo, affiliateRepo, referralRepo)
	affiliateSvc := service.NewAffiliateService(affiliateRepo, auditRepo, &cfg.JWT, cfg.Referral.CodeAttempts)
	orderSvc := service.NewOrderService(paymentRepo, auditRepo, subSvc, commissionSvc, referralSvc, gw, calc)
	webhookSvc := service.NewWebhookService(subRepo, paymentRepo, eventRepo, auditRepo, commissionSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(cfg, userRepo, subSvc, referralSvc)
	subHandler := handler.NewSubscriptionHandler(subSvc)
	pricingHandler := handler.NewPricingHandler(calc, detector)
	paymentHandler := handler.NewPaymentHandler(orderSvc, detector)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, gw)
	referralHandler := handler.NewReferralHandler(referralSvc)
	affiliateHandler := handler.NewAffiliateHandler(affiliateSvc, commissionSvc)
	adminHandler := handler.NewAdminHandler(affiliateSvc, commissionRepo, auditRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		api.POST("/pricing/quote", pricingHandler.Quote)

		// Per-code limit on the public click endpoint, on top of the global
		// per-IP one.
		clickLimiter := middleware.NewInMemoryRateLimiter(30, time.Minute)
		api.POST("/r/:code/click",
			middleware.RateLimitKeyed(clickLimiter, func(c *gin.Context) string { return c.Param("code") }),
			referralHandler.TrackClick)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/subscription", subHandler.Get)
			me.POST("/subscription/check", subHandler.Check)
			me.POST("/subscription/usage", subHandler.RecordUsage)
			me.GET("/referral-code", referralHandler.GetMyCode)
			me.GET("/referrals", referralHandler.ListMyReferrals)
			me.POST("/referrals/invite", referralHandler.Invite)
		}

		payments := api.Group("/payments")
		payments.Use(authMw)
		{
			payments.GET("", paymentHandler.ListPayments)
			payments.POST("/orders/credits", paymentHandler.CreateCreditOrder)
			payments.POST("/orders/plan", paymentHandler.CreatePlanOrder)
			payments.GET("/orders/:orderID", paymentHandler.GetOrder)
			payments.POST("/verify", paymentHandler.Verify)
			payments.POST("/subscriptions", paymentHandler.SetupAutopay)
			payments.DELETE("/subscriptions", paymentHandler.CancelAutopay)
		}

		affiliates := api.Group("/affiliates")
		{
			affiliates.POST("/register", affiliateHandler.Register)
			affiliates.POST("/login", affiliateHandler.Login)
			affiliates.GET("/me", authMw, middleware.AffiliateRequired(), affiliateHandler.Dashboard)
			affiliates.GET("/me/commissions", authMw, middleware.AffiliateRequired(), affiliateHandler.ListCommissions)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/affiliates", adminHandler.ListAffiliates)
			admin.PUT("/affiliates/:id/status", adminHandler.TransitionAffiliate)
			admin.GET("/commissions", adminHandler.ListCommissions)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
		}

		api.POST("/webhooks/razorpay", webhookHandler.Handle)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
