package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ResourceType string

const (
	ResourceTypeBed              ResourceType = "bed"
	ResourceTypeICU              ResourceType = "icu"
	ResourceTypeOperationTheatre ResourceType = "operation_theatre"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceTypeBed, ResourceTypeICU, ResourceTypeOperationTheatre:
		return true
	}
	return false
}

// HospitalPricing is one pricing row for a (hospital, resource type) pair.
// BaseRate is an hourly rate in currency minor units. ServiceChargeRate is
// the platform's cut as a fraction in [0,1]. The resolver always reads the
// row with the latest effective_from not in the future.
type HospitalPricing struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	HospitalID        uuid.UUID       `db:"hospital_id" json:"hospital_id"`
	ResourceType      ResourceType    `db:"resource_type" json:"resource_type"`
	BaseRate          int64           `db:"base_rate" json:"base_rate"`
	ServiceChargeRate decimal.Decimal `db:"service_charge_rate" json:"service_charge_rate"`
	EffectiveFrom     time.Time       `db:"effective_from" json:"effective_from"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Rate is the resolved pricing for a booking.
type Rate struct {
	BaseRate          int64           `json:"base_rate"`
	ServiceChargeRate decimal.Decimal `json:"service_charge_rate"`
}

type UpsertPricingRequest struct {
	HospitalID        uuid.UUID `json:"hospital_id" binding:"required"`
	ResourceType      string    `json:"resource_type" binding:"required,oneof=bed icu operation_theatre"`
	BaseRate          string    `json:"base_rate" binding:"required"`
	ServiceChargeRate string    `json:"service_charge_rate" binding:"required,rate"`
	EffectiveFrom     time.Time `json:"effective_from"`
}
