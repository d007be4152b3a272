package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/logger"
	"github.com/rapidcare/billing-api/pkg/messaging"
	"github.com/rapidcare/billing-api/pkg/metrics"
)

// Service verifies stored balances against the transaction ledger. The
// ledger is the source of truth; a non-zero discrepancy raises an alert but
// the stored balance is never auto-corrected here. Correction is a separate,
// audited admin action.
type Service struct {
	ledgerRepo repository.LedgerRepository
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(
	ledgerRepo repository.LedgerRepository,
	outboxRepo repository.OutboxRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
		metrics:    metrics,
	}
}

// Reconcile recomputes one account's balance from its transaction history
// and compares it to the cached row.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) (*model.ReconciliationReport, error) {
	balance, err := s.ledgerRepo.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}

	computed, err := s.ledgerRepo.SumTransactions(ctx, accountID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	report := &model.ReconciliationReport{
		AccountID:       accountID,
		ComputedBalance: computed,
		StoredBalance:   balance.Amount,
		Discrepancy:     balance.Amount - computed,
		CheckedAt:       time.Now(),
	}

	s.observe(report)
	if report.Discrepancy != 0 {
		s.alert(ctx, report)
	}

	return report, nil
}

// ReconcileAll sweeps every known account. Per-account failures are logged
// and the sweep continues; the first error is returned once the sweep ends.
func (s *Service) ReconcileAll(ctx context.Context) ([]*model.ReconciliationReport, error) {
	accounts, err := s.ledgerRepo.ListAccounts(ctx)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	var firstErr error
	reports := make([]*model.ReconciliationReport, 0, len(accounts))
	for _, accountID := range accounts {
		report, err := s.Reconcile(ctx, accountID)
		if err != nil {
			s.logger.Error(err, "reconciliation failed", "account_id", accountID.String())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reports = append(reports, report)
	}

	return reports, firstErr
}

// VerifyLedger checks the closed-ledger invariant: all movements signed by
// direction sum to zero.
func (s *Service) VerifyLedger(ctx context.Context) error {
	sum, err := s.ledgerRepo.SumLedger(ctx)
	if err != nil {
		return apperrors.Persistence(err)
	}
	if sum != 0 {
		err := errors.New("ledger movements do not net to zero")
		s.logger.Error(err, "ledger integrity violation", "signed_sum", sum)
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) observe(report *model.ReconciliationReport) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReconciliationRuns.Inc()
	s.metrics.ReconciliationDiscrepancy.
		WithLabelValues(report.AccountID.String()).
		Set(float64(report.Discrepancy))
}

// alert escalates a data-integrity discrepancy: error log plus an outbox
// event for operator-facing consumers. Alert delivery must not fail the
// reconciliation read itself.
func (s *Service) alert(ctx context.Context, report *model.ReconciliationReport) {
	s.logger.Error(nil, "balance discrepancy detected",
		"account_id", report.AccountID.String(),
		"stored_balance", report.StoredBalance,
		"computed_balance", report.ComputedBalance,
		"discrepancy", report.Discrepancy,
	)
	if s.metrics != nil {
		s.metrics.ReconciliationAlertsTotal.Inc()
	}

	if s.outboxRepo == nil {
		return
	}
	payload, err := json.Marshal(model.DiscrepancyEventPayload{
		AccountID:       report.AccountID,
		ComputedBalance: report.ComputedBalance,
		StoredBalance:   report.StoredBalance,
		Discrepancy:     report.Discrepancy,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal discrepancy event")
		return
	}
	if err := s.outboxRepo.Create(ctx, &model.OutboxEvent{
		EventType: messaging.ChannelReconciliationDiscrepancy,
		Payload:   payload,
	}); err != nil {
		s.logger.Error(err, "failed to record discrepancy event")
	}
}
