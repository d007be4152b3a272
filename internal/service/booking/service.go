package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	"github.com/rapidcare/billing-api/internal/service/billing"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

// RateResolver supplies the active pricing for a (hospital, resource type)
// pair; the pricing service satisfies it.
type RateResolver interface {
	ResolveRate(ctx context.Context, hospitalID uuid.UUID, resourceType model.ResourceType) (*model.Rate, error)
}

type Service struct {
	repo     repository.BookingRepository
	resolver RateResolver
}

func NewService(repo repository.BookingRepository, resolver RateResolver) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
	}
}

// CreateBooking resolves the current rate, computes the amount split and
// persists the booking with the split frozen. Later pricing changes never
// touch an existing booking.
func (s *Service) CreateBooking(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	resourceType := model.ResourceType(req.ResourceType)
	if !resourceType.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource type %q", req.ResourceType), nil)
	}

	rate, err := s.resolver.ResolveRate(ctx, req.HospitalID, resourceType)
	if err != nil {
		return nil, err
	}

	split, err := billing.ComputeAmount(rate.BaseRate, req.DurationHours, rate.ServiceChargeRate)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		UserID:             req.UserID,
		HospitalID:         req.HospitalID,
		ResourceType:       resourceType,
		ScheduledDate:      req.ScheduledDate,
		DurationHours:      req.DurationHours,
		Status:             model.BookingStatusPending,
		PaymentStatus:      model.PaymentStatusUnpaid,
		TotalAmount:        split.TotalAmount,
		HospitalShare:      split.HospitalShare,
		ServiceChargeShare: split.ServiceChargeShare,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	return s.repo.List(ctx, filters)
}

// Valid status moves. Payment state is owned by the ledger and moves
// separately.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingStatusPending:  {model.BookingStatusApproved, model.BookingStatusDeclined, model.BookingStatusCancelled},
	model.BookingStatusApproved: {model.BookingStatusCompleted, model.BookingStatusCancelled},
}

func validTransition(from, to model.BookingStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) (*model.Booking, error) {
	booking, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !validTransition(booking.Status, status) {
		return nil, apperrors.InvalidInput(
			fmt.Sprintf("cannot move booking from %s to %s", booking.Status, status), nil)
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	booking.Status = status
	return booking, nil
}
