package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/rapidcare/billing-api/config"
	"github.com/rapidcare/billing-api/internal/handler"
	accountHandler "github.com/rapidcare/billing-api/internal/handler/account"
	bookingHandler "github.com/rapidcare/billing-api/internal/handler/booking"
	paymentHandler "github.com/rapidcare/billing-api/internal/handler/payment"
	pricingHandler "github.com/rapidcare/billing-api/internal/handler/pricing"
	reconciliationHandler "github.com/rapidcare/billing-api/internal/handler/reconciliation"
	"github.com/rapidcare/billing-api/internal/middleware"
	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository/postgres"
	"github.com/rapidcare/billing-api/internal/router"
	billingService "github.com/rapidcare/billing-api/internal/service/billing"
	bookingService "github.com/rapidcare/billing-api/internal/service/booking"
	pricingService "github.com/rapidcare/billing-api/internal/service/pricing"
	reconciliationService "github.com/rapidcare/billing-api/internal/service/reconciliation"
	"github.com/rapidcare/billing-api/pkg/logger"
	"github.com/rapidcare/billing-api/pkg/messaging/redis"
	"github.com/rapidcare/billing-api/pkg/metrics"
	"github.com/rapidcare/billing-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("rapidcare", "billing")

	if err := model.RegisterValidations(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	adminAccountID, err := cfg.Billing.AdminAccount()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid admin account ID")
	}

	// Repositories
	base := postgres.NewBaseRepository(db)
	pricingRepo := postgres.NewPricingRepository(base)
	bookingRepo := postgres.NewBookingRepository(base)
	ledgerRepo := postgres.NewLedgerRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Services
	pricingSvc := pricingService.NewService(pricingRepo, cfg.Billing.PricingCacheTTL)
	bookingSvc := bookingService.NewService(bookingRepo, pricingSvc)
	billingSvc := billingService.NewService(ledgerRepo, bookingRepo, outboxRepo, adminAccountID, appLogger, appMetrics)
	reconciliationSvc := reconciliationService.NewService(ledgerRepo, outboxRepo, appLogger, appMetrics)

	// Handlers
	h := handler.NewHandler(db)
	pricingH := pricingHandler.NewHandler(pricingSvc)
	bookingH := bookingHandler.NewHandler(bookingSvc)
	paymentH := paymentHandler.NewHandler(billingSvc)
	accountH := accountHandler.NewHandler(ledgerRepo)
	reconciliationH := reconciliationHandler.NewHandler(reconciliationSvc)

	r := router.NewRouter(
		pricingH,
		bookingH,
		paymentH,
		accountH,
		reconciliationH,
		h,
		router.RouterConfig{
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			RequestTimeout: cfg.Server.RequestTimeout,
			CORSConfig:     middleware.DefaultCORSConfig(),
			MetricsPrefix:  "billing_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, appLogger, appMetrics)
	go outboxProcessor.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
