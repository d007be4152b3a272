package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindPayment TransactionKind = "payment"
	TransactionKindRefund  TransactionKind = "refund"
	// Reversal is reserved for audited admin corrections; the payment and
	// refund flows never emit it.
	TransactionKindReversal TransactionKind = "reversal"
)

// Transaction is one ledger movement: FromAccount is debited and ToAccount
// credited by Amount minor units. Rows are append-only; corrections are new
// rows, never updates.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	BookingID   uuid.UUID       `db:"booking_id" json:"booking_id"`
	FromAccount uuid.UUID       `db:"from_account" json:"from_account"`
	ToAccount   uuid.UUID       `db:"to_account" json:"to_account"`
	Amount      int64           `db:"amount" json:"amount"`
	Kind        TransactionKind `db:"kind" json:"kind"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Balance is the cached per-account aggregate. It must always equal the
// signed sum of transactions referencing the account; reconciliation treats
// the transaction history as the source of truth.
type Balance struct {
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	Amount    int64     `db:"amount" json:"amount"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BookingPayment is the idempotency marker: one row per paid booking,
// booking_id is the primary key. RefundedAt is set at most once.
type BookingPayment struct {
	BookingID  uuid.UUID  `db:"booking_id" json:"booking_id"`
	PaidAt     time.Time  `db:"paid_at" json:"paid_at"`
	RefundedAt *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
}

// AmountSplit is the output of the booking amount calculator.
// TotalAmount == HospitalShare + ServiceChargeShare always holds exactly.
type AmountSplit struct {
	TotalAmount        int64 `json:"total_amount"`
	HospitalShare      int64 `json:"hospital_share"`
	ServiceChargeShare int64 `json:"service_charge_share"`
}

// ReconciliationReport compares the cached balance against the recomputed
// transaction sum. A non-zero discrepancy is reported, never auto-corrected.
type ReconciliationReport struct {
	AccountID       uuid.UUID `json:"account_id"`
	ComputedBalance int64     `json:"computed_balance"`
	StoredBalance   int64     `json:"stored_balance"`
	Discrepancy     int64     `json:"discrepancy"`
	CheckedAt       time.Time `json:"checked_at"`
}

type PaymentRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Amount    int64     `json:"amount" binding:"required,gt=0"`
}

type PaymentResult struct {
	BookingID    uuid.UUID      `json:"booking_id"`
	Transactions []*Transaction `json:"transactions"`
}
