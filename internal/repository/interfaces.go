package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rapidcare/billing-api/internal/model"
)

type PricingRepository interface {
	Upsert(ctx context.Context, pricing *model.HospitalPricing) error
	GetActive(ctx context.Context, hospitalID uuid.UUID, resourceType model.ResourceType) (*model.HospitalPricing, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error
	UpdatePaymentStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error
}

// LedgerRepository owns transactions, balances and the booking_payments
// idempotency marker. All writes take an open *sqlx.Tx so the service layer
// controls the transactional boundary.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error

	InsertPaymentMarker(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error
	MarkRefunded(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error
	GetPayment(ctx context.Context, bookingID uuid.UUID) (*model.BookingPayment, error)

	InsertTransactions(ctx context.Context, tx *sqlx.Tx, transactions []*model.Transaction) error
	IncrementBalance(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int64) error

	GetBalance(ctx context.Context, accountID uuid.UUID) (*model.Balance, error)
	SumTransactions(ctx context.Context, accountID uuid.UUID) (int64, error)
	SumLedger(ctx context.Context) (int64, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID) ([]*model.Transaction, error)
	ListAccounts(ctx context.Context) ([]uuid.UUID, error)
}

type OutboxRepository interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
