package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

const pqUniqueViolation = "23505"

type ledgerRepository struct {
	BaseRepository
}

func NewLedgerRepository(base BaseRepository) repository.LedgerRepository {
	return &ledgerRepository{base}
}

// InsertPaymentMarker claims the at-most-one-payment-per-booking slot.
// booking_payments has booking_id as its primary key, so of two concurrent
// payments for the same booking exactly one insert commits; the loser gets
// a unique violation surfaced as DuplicatePayment and its whole transaction
// rolls back.
func (r *ledgerRepository) InsertPaymentMarker(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error {
	query := `
		INSERT INTO booking_payments (booking_id, paid_at)
		VALUES ($1, $2)
	`
	_, err := tx.ExecContext(ctx, query, bookingID, time.Now())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return apperrors.DuplicatePayment(bookingID.String())
		}
		return fmt.Errorf("failed to insert payment marker: %w", err)
	}
	return nil
}

// MarkRefunded flips refunded_at at most once. Zero rows affected means the
// booking either was never paid or is already refunded; the service layer
// distinguishes the two.
func (r *ledgerRepository) MarkRefunded(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error {
	query := `
		UPDATE booking_payments
		SET refunded_at = $1
		WHERE booking_id = $2
		AND refunded_at IS NULL
	`
	result, err := tx.ExecContext(ctx, query, time.Now(), bookingID)
	if err != nil {
		return fmt.Errorf("failed to mark refund: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.AlreadyRefunded(bookingID.String())
	}

	return nil
}

func (r *ledgerRepository) GetPayment(ctx context.Context, bookingID uuid.UUID) (*model.BookingPayment, error) {
	query := `
		SELECT booking_id, paid_at, refunded_at
		FROM booking_payments
		WHERE booking_id = $1
	`
	var payment model.BookingPayment
	err := r.db.GetContext(ctx, &payment, query, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("payment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *ledgerRepository) InsertTransactions(ctx context.Context, tx *sqlx.Tx, transactions []*model.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, booking_id, from_account, to_account, amount, kind, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, t := range transactions {
		if _, err := tx.ExecContext(ctx, query,
			t.ID,
			t.BookingID,
			t.FromAccount,
			t.ToAccount,
			t.Amount,
			t.Kind,
			t.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}
	return nil
}

// IncrementBalance is a single-statement atomic read-modify-write so
// concurrent credits to the same account never lose updates.
func (r *ledgerRepository) IncrementBalance(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int64) error {
	query := `
		INSERT INTO balances (account_id, amount, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id)
		DO UPDATE SET amount = balances.amount + $2, updated_at = $3
	`
	_, err := tx.ExecContext(ctx, query, accountID, delta, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment balance: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetBalance(ctx context.Context, accountID uuid.UUID) (*model.Balance, error) {
	query := `
		SELECT account_id, amount, updated_at
		FROM balances
		WHERE account_id = $1
	`
	var balance model.Balance
	err := r.db.GetContext(ctx, &balance, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("account", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

// SumTransactions recomputes an account's balance from the ledger: credits
// where the account is the destination, debits where it is the source.
func (r *ledgerRepository) SumTransactions(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN to_account = $1 THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE to_account = $1 OR from_account = $1
	`
	var sum int64
	if err := r.db.GetContext(ctx, &sum, query, accountID); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}

// SumLedger sums every movement signed by direction: each row contributes
// +amount for its credit side and -amount for its debit side. Anything other
// than zero means money was created or destroyed.
func (r *ledgerRepository) SumLedger(ctx context.Context) (int64, error) {
	query := `
		SELECT COALESCE(SUM(signed), 0) FROM (
			SELECT amount AS signed FROM transactions
			UNION ALL
			SELECT -amount FROM transactions
		) movements
	`
	var sum int64
	if err := r.db.GetContext(ctx, &sum, query); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]*model.Transaction, error) {
	query := `
		SELECT id, booking_id, from_account, to_account, amount, kind, created_at
		FROM transactions
		WHERE to_account = $1 OR from_account = $1
		ORDER BY created_at DESC
	`
	var transactions []*model.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func (r *ledgerRepository) ListAccounts(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT account_id
		FROM balances
		ORDER BY account_id
	`
	var accounts []uuid.UUID
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
