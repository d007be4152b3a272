package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/logger"
	"github.com/rapidcare/billing-api/pkg/messaging"
	"github.com/rapidcare/billing-api/pkg/metrics"
)

// Service is the balance ledger. It applies a booking's payment as two
// movements (payer to hospital, payer to platform admin) plus the matching
// balance increments, all inside one database transaction, and reverses
// them on refund. At most one payment and one refund per booking.
type Service struct {
	ledgerRepo     repository.LedgerRepository
	bookingRepo    repository.BookingRepository
	outboxRepo     repository.OutboxRepository
	adminAccountID uuid.UUID
	logger         *logger.Logger
	metrics        *metrics.Metrics
}

func NewService(
	ledgerRepo repository.LedgerRepository,
	bookingRepo repository.BookingRepository,
	outboxRepo repository.OutboxRepository,
	adminAccountID uuid.UUID,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		ledgerRepo:     ledgerRepo,
		bookingRepo:    bookingRepo,
		outboxRepo:     outboxRepo,
		adminAccountID: adminAccountID,
		logger:         logger,
		metrics:        metrics,
	}
}

// ApplyPayment records a booking's payment. The submitted amount must match
// the total frozen on the booking at creation time.
//
// Concurrency: the payment marker insert serializes concurrent payments for
// the same booking; the loser's transaction rolls back whole and surfaces
// DuplicatePayment. Payments for different bookings run fully in parallel.
func (s *Service) ApplyPayment(ctx context.Context, req *model.PaymentRequest) (*model.PaymentResult, error) {
	booking, err := s.bookingRepo.Get(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if req.Amount != booking.TotalAmount {
		return nil, apperrors.InvalidInput("amount does not match booking total", nil)
	}
	if booking.HospitalShare+booking.ServiceChargeShare != booking.TotalAmount {
		return nil, apperrors.Internal(errors.New("booking split does not sum to total"))
	}
	if booking.PaymentStatus != model.PaymentStatusUnpaid {
		s.observeDuplicate()
		return nil, apperrors.DuplicatePayment(booking.ID.String())
	}

	now := time.Now()
	transactions := []*model.Transaction{
		{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			FromAccount: booking.UserID,
			ToAccount:   booking.HospitalID,
			Amount:      booking.HospitalShare,
			Kind:        model.TransactionKindPayment,
			CreatedAt:   now,
		},
		{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			FromAccount: booking.UserID,
			ToAccount:   s.adminAccountID,
			Amount:      booking.ServiceChargeShare,
			Kind:        model.TransactionKindPayment,
			CreatedAt:   now,
		},
	}

	timer := s.startLedgerTimer()
	err = s.ledgerRepo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ledgerRepo.InsertPaymentMarker(ctx, tx, booking.ID); err != nil {
			return err
		}
		if err := s.ledgerRepo.InsertTransactions(ctx, tx, transactions); err != nil {
			return err
		}
		if err := s.ledgerRepo.IncrementBalance(ctx, tx, booking.HospitalID, booking.HospitalShare); err != nil {
			return err
		}
		if err := s.ledgerRepo.IncrementBalance(ctx, tx, s.adminAccountID, booking.ServiceChargeShare); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdatePaymentStatus(ctx, tx, booking.ID, model.PaymentStatusPaid); err != nil {
			return err
		}
		return s.createPaymentEvent(ctx, tx, messaging.ChannelPaymentApplied, booking)
	})
	s.observeLedgerTimer(timer)

	if err != nil {
		return nil, s.classifyLedgerError(err, booking.ID)
	}

	s.observePayment()
	s.logger.Info("payment applied",
		"booking_id", booking.ID.String(),
		"total_amount", booking.TotalAmount,
		"hospital_share", booking.HospitalShare,
		"service_charge_share", booking.ServiceChargeShare,
	)

	return &model.PaymentResult{
		BookingID:    booking.ID,
		Transactions: transactions,
	}, nil
}

// Refund reverses a booking's full payment. The original payment must exist
// and not already be refunded; partial refunds are not supported.
func (s *Service) Refund(ctx context.Context, bookingID uuid.UUID) (*model.PaymentResult, error) {
	booking, err := s.bookingRepo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.PaymentStatus {
	case model.PaymentStatusPaid:
	case model.PaymentStatusRefunded:
		return nil, apperrors.AlreadyRefunded(bookingID.String())
	default:
		return nil, apperrors.NotFound("payment", nil)
	}

	now := time.Now()
	transactions := []*model.Transaction{
		{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			FromAccount: booking.HospitalID,
			ToAccount:   booking.UserID,
			Amount:      booking.HospitalShare,
			Kind:        model.TransactionKindRefund,
			CreatedAt:   now,
		},
		{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			FromAccount: s.adminAccountID,
			ToAccount:   booking.UserID,
			Amount:      booking.ServiceChargeShare,
			Kind:        model.TransactionKindRefund,
			CreatedAt:   now,
		},
	}

	timer := s.startLedgerTimer()
	err = s.ledgerRepo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ledgerRepo.MarkRefunded(ctx, tx, booking.ID); err != nil {
			return err
		}
		if err := s.ledgerRepo.InsertTransactions(ctx, tx, transactions); err != nil {
			return err
		}
		if err := s.ledgerRepo.IncrementBalance(ctx, tx, booking.HospitalID, -booking.HospitalShare); err != nil {
			return err
		}
		if err := s.ledgerRepo.IncrementBalance(ctx, tx, s.adminAccountID, -booking.ServiceChargeShare); err != nil {
			return err
		}
		if err := s.bookingRepo.UpdatePaymentStatus(ctx, tx, booking.ID, model.PaymentStatusRefunded); err != nil {
			return err
		}
		return s.createPaymentEvent(ctx, tx, messaging.ChannelPaymentRefunded, booking)
	})
	s.observeLedgerTimer(timer)

	if err != nil {
		return nil, s.classifyLedgerError(err, booking.ID)
	}

	s.observeRefund()
	s.logger.Info("payment refunded",
		"booking_id", booking.ID.String(),
		"total_amount", booking.TotalAmount,
	)

	return &model.PaymentResult{
		BookingID:    booking.ID,
		Transactions: transactions,
	}, nil
}

// GetPayment reports the payment marker for a booking.
func (s *Service) GetPayment(ctx context.Context, bookingID uuid.UUID) (*model.BookingPayment, error) {
	return s.ledgerRepo.GetPayment(ctx, bookingID)
}

func (s *Service) createPaymentEvent(ctx context.Context, tx *sqlx.Tx, eventType string, booking *model.Booking) error {
	payload, err := json.Marshal(model.PaymentEventPayload{
		BookingID:          booking.ID,
		HospitalAccountID:  booking.HospitalID,
		AdminAccountID:     s.adminAccountID,
		TotalAmount:        booking.TotalAmount,
		HospitalShare:      booking.HospitalShare,
		ServiceChargeShare: booking.ServiceChargeShare,
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.CreateTx(ctx, tx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}

// classifyLedgerError keeps caller-fault errors as-is and wraps storage
// failures as Persistence so callers know a retry is safe.
func (s *Service) classifyLedgerError(err error, bookingID uuid.UUID) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperrors.ErrDuplicatePayment {
			s.observeDuplicate()
		}
		return appErr
	}

	s.observeFailure()
	s.logger.Error(err, "ledger write failed", "booking_id", bookingID.String())
	return apperrors.Persistence(err)
}

func (s *Service) startLedgerTimer() *prometheus.Timer {
	if s.metrics == nil {
		return nil
	}
	return prometheus.NewTimer(s.metrics.LedgerWriteLatency)
}

func (s *Service) observeLedgerTimer(timer *prometheus.Timer) {
	if timer != nil {
		timer.ObserveDuration()
	}
}

func (s *Service) observePayment() {
	if s.metrics != nil {
		s.metrics.PaymentsApplied.Inc()
	}
}

func (s *Service) observeRefund() {
	if s.metrics != nil {
		s.metrics.RefundsApplied.Inc()
	}
}

func (s *Service) observeDuplicate() {
	if s.metrics != nil {
		s.metrics.PaymentsDuplicate.Inc()
	}
}

func (s *Service) observeFailure() {
	if s.metrics != nil {
		s.metrics.PaymentsFailed.Inc()
	}
}
