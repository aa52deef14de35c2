package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"postpilot/config"
	"postpilot/internal/database"
	"postpilot/internal/repository"
	"postpilot/internal/router"
	"postpilot/internal/scheduler"
	"postpilot/internal/service"
	"postpilot/pkg/gateway"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	var gw gateway.Gateway
	if cfg.Gateway.KeyID != "" {
		gw = gateway.NewRazorpayClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret, cfg.Gateway.Timeout)
	} else {
		// No gateway credentials: local development runs against the stub.
		log.Warn().Msg("no gateway key configured, using stub gateway")
		gw = gateway.NewStub("stub-secret", "stub-webhook-secret")
	}

	if cfg.Scheduler.Enabled {
		subRepo := repository.NewSubscriptionRepository(db)
		referralRepo := repository.NewReferralRepository(db)
		affiliateRepo := repository.NewAffiliateRepository(db)
		commissionRepo := repository.NewCommissionRepository(db)
		userRepo := repository.NewUserRepository(db)

		subs := service.NewSubscriptionService(subRepo)
		referrals := service.NewReferralService(referralRepo, userRepo, affiliateRepo, service.LogMailer{}, cfg.Referral.CodeAttempts, cfg.Referral.MaxInviteEmails)
		commissions := service.NewCommissionService(commissionRepo, affiliateRepo, referralRepo)

		sched := scheduler.New(subs, commissions, referrals)
		if err := sched.Start(cfg.Scheduler.DailySpec); err != nil {
			log.Fatal().Err(err).Msg("scheduler start failed")
		}
		defer sched.Stop()
	}

	engine := router.Setup(cfg, db, gw)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
