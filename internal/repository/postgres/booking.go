package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, user_id, hospital_id, resource_type, scheduled_date,
			duration_hours, status, payment_status, total_amount,
			hospital_share, service_charge_share, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.HospitalID,
		booking.ResourceType,
		booking.ScheduledDate,
		booking.DurationHours,
		booking.Status,
		booking.PaymentStatus,
		booking.TotalAmount,
		booking.HospitalShare,
		booking.ServiceChargeShare,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `
		SELECT id, user_id, hospital_id, resource_type, scheduled_date,
			   duration_hours, status, payment_status, total_amount,
			   hospital_share, service_charge_share, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("booking", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	query := `
		SELECT id, user_id, hospital_id, resource_type, scheduled_date,
			   duration_hours, status, payment_status, total_amount,
			   hospital_share, service_charge_share, created_at, updated_at
		FROM bookings
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.HospitalID != uuid.Nil {
		query += fmt.Sprintf(" AND hospital_id = $%d", argCount)
		args = append(args, filters.HospitalID)
		argCount++
	}

	if filters.UserID != uuid.Nil {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, filters.UserID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	query += " ORDER BY scheduled_date ASC"

	var bookings []*model.Booking
	err := r.db.SelectContext(ctx, &bookings, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("booking", nil)
	}

	return nil
}

// UpdatePaymentStatus runs inside the ledger transaction so the payment
// state flip commits or rolls back with the ledger movements.
func (r *bookingRepository) UpdatePaymentStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error {
	query := `
		UPDATE bookings
		SET payment_status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := tx.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("booking", nil)
	}

	return nil
}
