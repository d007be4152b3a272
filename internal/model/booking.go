package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusApproved  BookingStatus = "approved"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Booking freezes its amount split at creation time from the then-current
// pricing. The monetary fields never change afterwards; payment state moves
// unpaid -> paid -> refunded only.
type Booking struct {
	Base
	UserID             uuid.UUID     `db:"user_id" json:"user_id"`
	HospitalID         uuid.UUID     `db:"hospital_id" json:"hospital_id"`
	ResourceType       ResourceType  `db:"resource_type" json:"resource_type"`
	ScheduledDate      time.Time     `db:"scheduled_date" json:"scheduled_date"`
	DurationHours      int           `db:"duration_hours" json:"duration_hours"`
	Status             BookingStatus `db:"status" json:"status"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"payment_status"`
	TotalAmount        int64         `db:"total_amount" json:"total_amount"`
	HospitalShare      int64         `db:"hospital_share" json:"hospital_share"`
	ServiceChargeShare int64         `db:"service_charge_share" json:"service_charge_share"`
}

type CreateBookingRequest struct {
	UserID        uuid.UUID `json:"user_id" binding:"required"`
	HospitalID    uuid.UUID `json:"hospital_id" binding:"required"`
	ResourceType  string    `json:"resource_type" binding:"required,oneof=bed icu operation_theatre"`
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
	DurationHours int       `json:"duration_hours" binding:"required,gt=0"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=approved declined completed cancelled"`
}

type BookingFilters struct {
	HospitalID uuid.UUID
	UserID     uuid.UUID
	Status     BookingStatus
}
