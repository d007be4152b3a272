package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rapidcare/billing-api/config"
	"github.com/rapidcare/billing-api/internal/repository/postgres"
	reconciliationService "github.com/rapidcare/billing-api/internal/service/reconciliation"
	"github.com/rapidcare/billing-api/pkg/logger"
	"github.com/rapidcare/billing-api/pkg/metrics"
	"github.com/rapidcare/billing-api/pkg/worker"
)

// The reconciliation worker runs the scheduled sweep out of process so a
// slow recompute never competes with payment traffic.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if !cfg.Reconciliation.Enabled {
		log.Info().Msg("reconciliation is disabled, exiting")
		return
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("rapidcare", "reconciler")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	reconciliationSvc := reconciliationService.NewService(ledgerRepo, outboxRepo, appLogger, appMetrics)
	reconcileWorker := worker.NewReconcileWorker(reconciliationSvc, cfg.Reconciliation.Interval, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reconcileWorker.Start(ctx)

	// Metrics endpoint for the worker process
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.Port+1)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down reconciliation worker...")
	cancel()
}
