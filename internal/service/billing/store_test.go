package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rapidcare/billing-api/internal/model"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

// errDBDown simulates a raw driver failure, not an application error.
var errDBDown = errors.New("connection reset by peer")

// fakeStore is an in-memory stand-in for the ledger, booking and outbox
// repositories. WithTx snapshots all state and restores it when the
// callback fails, mirroring the database rollback the service relies on.
type fakeStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*model.Booking
	markers  map[uuid.UUID]model.BookingPayment
	txs      []*model.Transaction
	balances map[uuid.UUID]int64
	events   []*model.OutboxEvent

	failIncrementAfter int // fail the Nth IncrementBalance call (1-based), 0 disables
	incrementCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: make(map[uuid.UUID]*model.Booking),
		markers:  make(map[uuid.UUID]model.BookingPayment),
		balances: make(map[uuid.UUID]int64),
	}
}

type storeSnapshot struct {
	bookings map[uuid.UUID]model.Booking
	markers  map[uuid.UUID]model.BookingPayment
	txCount  int
	balances map[uuid.UUID]int64
	events   int
}

func (s *fakeStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		bookings: make(map[uuid.UUID]model.Booking, len(s.bookings)),
		markers:  make(map[uuid.UUID]model.BookingPayment, len(s.markers)),
		txCount:  len(s.txs),
		balances: make(map[uuid.UUID]int64, len(s.balances)),
		events:   len(s.events),
	}
	for id, b := range s.bookings {
		snap.bookings[id] = *b
	}
	for id, m := range s.markers {
		snap.markers[id] = m
	}
	for id, amount := range s.balances {
		snap.balances[id] = amount
	}
	return snap
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.bookings = make(map[uuid.UUID]*model.Booking, len(snap.bookings))
	for id, b := range snap.bookings {
		copied := b
		s.bookings[id] = &copied
	}
	s.markers = make(map[uuid.UUID]model.BookingPayment, len(snap.markers))
	for id, m := range snap.markers {
		s.markers[id] = m
	}
	s.txs = s.txs[:snap.txCount]
	s.balances = make(map[uuid.UUID]int64, len(snap.balances))
	for id, amount := range snap.balances {
		s.balances[id] = amount
	}
	s.events = s.events[:snap.events]
}

// LedgerRepository

func (s *fakeStore) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) InsertPaymentMarker(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error {
	if _, exists := s.markers[bookingID]; exists {
		return apperrors.DuplicatePayment(bookingID.String())
	}
	s.markers[bookingID] = model.BookingPayment{BookingID: bookingID, PaidAt: time.Now()}
	return nil
}

func (s *fakeStore) MarkRefunded(ctx context.Context, tx *sqlx.Tx, bookingID uuid.UUID) error {
	marker, exists := s.markers[bookingID]
	if !exists || marker.RefundedAt != nil {
		return apperrors.AlreadyRefunded(bookingID.String())
	}
	now := time.Now()
	marker.RefundedAt = &now
	s.markers[bookingID] = marker
	return nil
}

func (s *fakeStore) GetPayment(ctx context.Context, bookingID uuid.UUID) (*model.BookingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	marker, exists := s.markers[bookingID]
	if !exists {
		return nil, apperrors.NotFound("payment", nil)
	}
	return &marker, nil
}

func (s *fakeStore) InsertTransactions(ctx context.Context, tx *sqlx.Tx, transactions []*model.Transaction) error {
	s.txs = append(s.txs, transactions...)
	return nil
}

func (s *fakeStore) IncrementBalance(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int64) error {
	s.incrementCalls++
	if s.failIncrementAfter > 0 && s.incrementCalls >= s.failIncrementAfter {
		return errDBDown
	}
	s.balances[accountID] += delta
	return nil
}

func (s *fakeStore) GetBalance(ctx context.Context, accountID uuid.UUID) (*model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, exists := s.balances[accountID]
	if !exists {
		return nil, apperrors.NotFound("account", nil)
	}
	return &model.Balance{AccountID: accountID, Amount: amount}, nil
}

func (s *fakeStore) SumTransactions(ctx context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, t := range s.txs {
		if t.ToAccount == accountID {
			sum += t.Amount
		}
		if t.FromAccount == accountID {
			sum -= t.Amount
		}
	}
	return sum, nil
}

func (s *fakeStore) SumLedger(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, t := range s.txs {
		sum += t.Amount
		sum -= t.Amount
	}
	return sum, nil
}

func (s *fakeStore) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Transaction
	for _, t := range s.txs {
		if t.ToAccount == accountID || t.FromAccount == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAccounts(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.balances))
	for id := range s.balances {
		out = append(out, id)
	}
	return out, nil
}

// BookingRepository

func (s *fakeStore) Create(ctx context.Context, booking *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	copied := *booking
	s.bookings[booking.ID] = &copied
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, exists := s.bookings[id]
	if !exists {
		return nil, apperrors.NotFound("booking", nil)
	}
	copied := *booking
	return &copied, nil
}

func (s *fakeStore) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.bookings {
		copied := *b
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, exists := s.bookings[id]
	if !exists {
		return apperrors.NotFound("booking", nil)
	}
	booking.Status = status
	return nil
}

func (s *fakeStore) UpdatePaymentStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.PaymentStatus) error {
	booking, exists := s.bookings[id]
	if !exists {
		return apperrors.NotFound("booking", nil)
	}
	booking.PaymentStatus = status
	return nil
}

// fakeOutbox exposes the store's event log through the outbox interface.
// It is a separate type because the booking and outbox interfaces both
// declare Create and UpdateStatus.
type fakeOutbox struct {
	s *fakeStore
}

func (o *fakeOutbox) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	o.s.events = append(o.s.events, event)
	return nil
}

func (o *fakeOutbox) Create(ctx context.Context, event *model.OutboxEvent) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	o.s.events = append(o.s.events, event)
	return nil
}

func (o *fakeOutbox) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (o *fakeOutbox) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	return nil
}

func (o *fakeOutbox) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
