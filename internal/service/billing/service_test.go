package billing

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/service/reconciliation"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/logger"
	"github.com/rapidcare/billing-api/pkg/messaging"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:  logger.ErrorLevel,
		Output: io.Discard,
	})
}

type ledgerFixture struct {
	store   *fakeStore
	service *Service
	adminID uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := newFakeStore()
	adminID := uuid.New()
	service := NewService(store, store, &fakeOutbox{s: store}, adminID, testLogger(), nil)
	return &ledgerFixture{store: store, service: service, adminID: adminID}
}

func (f *ledgerFixture) addBooking(t *testing.T, total, hospitalShare, serviceChargeShare int64) *model.Booking {
	t.Helper()
	booking := &model.Booking{
		UserID:             uuid.New(),
		HospitalID:         uuid.New(),
		ResourceType:       model.ResourceTypeBed,
		DurationHours:      1,
		Status:             model.BookingStatusApproved,
		PaymentStatus:      model.PaymentStatusUnpaid,
		TotalAmount:        total,
		HospitalShare:      hospitalShare,
		ServiceChargeShare: serviceChargeShare,
	}
	require.NoError(t, f.store.Create(context.Background(), booking))
	return booking
}

func (f *ledgerFixture) balance(t *testing.T, accountID uuid.UUID) int64 {
	t.Helper()
	balance, err := f.store.GetBalance(context.Background(), accountID)
	if err != nil {
		return 0
	}
	return balance.Amount
}

func TestApplyPayment(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)

	result, err := f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: booking.ID,
		Amount:    120,
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	assert.Equal(t, int64(84), f.balance(t, booking.HospitalID))
	assert.Equal(t, int64(36), f.balance(t, f.adminID))
	assert.Equal(t, int64(0), f.balance(t, booking.UserID))

	updated, err := f.store.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, updated.PaymentStatus)

	marker, err := f.service.GetPayment(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Nil(t, marker.RefundedAt)

	require.Len(t, f.store.events, 1)
	assert.Equal(t, messaging.ChannelPaymentApplied, f.store.events[0].EventType)
}

func TestApplyPaymentAmountMismatch(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)

	_, err := f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: booking.ID,
		Amount:    100,
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrInvalidInput, appErr.Code)

	assert.Empty(t, f.store.txs)
	assert.Empty(t, f.store.markers)
}

func TestApplyPaymentUnknownBooking(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: uuid.New(),
		Amount:    120,
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestApplyPaymentDuplicate(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)
	req := &model.PaymentRequest{BookingID: booking.ID, Amount: 120}

	_, err := f.service.ApplyPayment(context.Background(), req)
	require.NoError(t, err)

	_, err = f.service.ApplyPayment(context.Background(), req)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrDuplicatePayment, appErr.Code)

	// The first payment's effects stand, the replay changed nothing.
	assert.Equal(t, int64(84), f.balance(t, booking.HospitalID))
	assert.Equal(t, int64(36), f.balance(t, f.adminID))
	assert.Len(t, f.store.txs, 2)
}

func TestApplyPaymentConcurrentSameBooking(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
				BookingID: booking.ID,
				Amount:    120,
			})
		}(i)
	}
	wg.Wait()

	var succeeded, duplicates int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, apperrors.ErrDuplicatePayment, appErr.Code)
		duplicates++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, duplicates)

	// Exactly one payment landed: the hospital is credited once, not eight times.
	assert.Equal(t, int64(84), f.balance(t, booking.HospitalID))
	assert.Equal(t, int64(36), f.balance(t, f.adminID))
	assert.Len(t, f.store.txs, 2)
}

func TestApplyPaymentRollsBackOnStorageFailure(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)
	f.store.failIncrementAfter = 2 // marker and transactions land, then the tx dies

	_, err := f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: booking.ID,
		Amount:    120,
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrPersistence, appErr.Code)

	// Nothing from the failed transaction is visible.
	assert.Empty(t, f.store.txs)
	assert.Empty(t, f.store.markers)
	assert.Equal(t, int64(0), f.balance(t, booking.HospitalID))
	assert.Equal(t, int64(0), f.balance(t, f.adminID))

	updated, err := f.store.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, updated.PaymentStatus)

	// The rollback released the marker, so a retry succeeds.
	f.store.failIncrementAfter = 0
	_, err = f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: booking.ID,
		Amount:    120,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(84), f.balance(t, booking.HospitalID))
}

func TestRefund(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 600, 420, 180)

	_, err := f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: booking.ID,
		Amount:    600,
	})
	require.NoError(t, err)

	result, err := f.service.Refund(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	for _, tx := range result.Transactions {
		assert.Equal(t, model.TransactionKindRefund, tx.Kind)
		assert.Equal(t, booking.UserID, tx.ToAccount)
	}

	// The refund restores every balance without touching payment history.
	assert.Equal(t, int64(0), f.balance(t, booking.HospitalID))
	assert.Equal(t, int64(0), f.balance(t, f.adminID))
	assert.Len(t, f.store.txs, 4)

	updated, err := f.store.Get(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, updated.PaymentStatus)

	marker, err := f.service.GetPayment(context.Background(), booking.ID)
	require.NoError(t, err)
	require.NotNil(t, marker.RefundedAt)

	require.Len(t, f.store.events, 2)
	assert.Equal(t, messaging.ChannelPaymentRefunded, f.store.events[1].EventType)
}

func TestRefundTwice(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)

	_, err := f.service.ApplyPayment(context.Background(), &model.PaymentRequest{
		BookingID: booking.ID,
		Amount:    120,
	})
	require.NoError(t, err)
	_, err = f.service.Refund(context.Background(), booking.ID)
	require.NoError(t, err)

	_, err = f.service.Refund(context.Background(), booking.ID)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrAlreadyRefunded, appErr.Code)

	assert.Len(t, f.store.txs, 4)
	assert.Equal(t, int64(0), f.balance(t, booking.HospitalID))
}

func TestRefundUnpaidBooking(t *testing.T) {
	f := newLedgerFixture(t)
	booking := f.addBooking(t, 120, 84, 36)

	_, err := f.service.Refund(context.Background(), booking.ID)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

// TestRandomSequenceReconcilesClean drives a random mix of payments, replays
// and refunds through the ledger, then asserts reconciliation finds every
// stored balance equal to its recomputed transaction sum and the ledger as a
// whole netting to zero.
func TestRandomSequenceReconcilesClean(t *testing.T) {
	f := newLedgerFixture(t)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	var bookings []*model.Booking
	for i := 0; i < 40; i++ {
		switch rng.Intn(3) {
		case 0: // new booking, pay it
			total := int64(rng.Intn(900) + 100)
			serviceCharge := total * 3 / 10
			booking := f.addBooking(t, total, total-serviceCharge, serviceCharge)
			bookings = append(bookings, booking)
			_, err := f.service.ApplyPayment(ctx, &model.PaymentRequest{
				BookingID: booking.ID,
				Amount:    total,
			})
			require.NoError(t, err)
		case 1: // replay a payment, must be rejected
			if len(bookings) == 0 {
				continue
			}
			booking := bookings[rng.Intn(len(bookings))]
			_, err := f.service.ApplyPayment(ctx, &model.PaymentRequest{
				BookingID: booking.ID,
				Amount:    booking.TotalAmount,
			})
			require.Error(t, err)
		case 2: // refund, tolerated only once per booking
			if len(bookings) == 0 {
				continue
			}
			booking := bookings[rng.Intn(len(bookings))]
			if _, err := f.service.Refund(ctx, booking.ID); err != nil {
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				require.Equal(t, apperrors.ErrAlreadyRefunded, appErr.Code)
			}
		}
	}

	checker := reconciliation.NewService(f.store, &fakeOutbox{s: f.store}, testLogger(), nil)

	reports, err := checker.ReconcileAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, reports)
	for _, report := range reports {
		assert.Zerof(t, report.Discrepancy,
			"account %s stored %d computed %d",
			report.AccountID, report.StoredBalance, report.ComputedBalance)
	}

	require.NoError(t, checker.VerifyLedger(ctx))
}
