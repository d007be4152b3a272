package worker

import (
	"context"
	"time"

	"github.com/rapidcare/billing-api/internal/service/reconciliation"
	"github.com/rapidcare/billing-api/pkg/logger"
)

// ReconcileWorker sweeps every account on a fixed interval, recomputing
// balances from the transaction ledger. Discrepancies are alerted by the
// reconciliation service; this worker only drives the schedule.
type ReconcileWorker struct {
	service  *reconciliation.Service
	interval time.Duration
	logger   *logger.Logger
}

func NewReconcileWorker(service *reconciliation.Service, interval time.Duration, logger *logger.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting reconciliation worker", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down reconciliation worker")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	reports, err := w.service.ReconcileAll(ctx)
	if err != nil {
		w.logger.Error(err, "reconciliation sweep finished with errors")
	}

	clean := 0
	for _, report := range reports {
		if report.Discrepancy == 0 {
			clean++
		}
	}
	w.logger.Info("reconciliation sweep finished",
		"accounts", len(reports),
		"clean", clean,
		"discrepancies", len(reports)-clean,
	)

	if err := w.service.VerifyLedger(ctx); err != nil {
		w.logger.Error(err, "ledger verification failed")
	}
}
