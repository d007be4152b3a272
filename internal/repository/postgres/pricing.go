package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

type pricingRepository struct {
	BaseRepository
}

func NewPricingRepository(base BaseRepository) repository.PricingRepository {
	return &pricingRepository{base}
}

// Upsert inserts a new pricing row. History is retained; the resolver reads
// the row with the latest effective_from per (hospital, resource type).
func (r *pricingRepository) Upsert(ctx context.Context, pricing *model.HospitalPricing) error {
	query := `
		INSERT INTO hospital_pricing (
			id, hospital_id, resource_type, base_rate,
			service_charge_rate, effective_from, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	pricing.ID = uuid.New()
	pricing.CreatedAt = time.Now()
	if pricing.EffectiveFrom.IsZero() {
		pricing.EffectiveFrom = pricing.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		pricing.ID,
		pricing.HospitalID,
		pricing.ResourceType,
		pricing.BaseRate,
		pricing.ServiceChargeRate,
		pricing.EffectiveFrom,
		pricing.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pricing: %w", err)
	}
	return nil
}

func (r *pricingRepository) GetActive(ctx context.Context, hospitalID uuid.UUID, resourceType model.ResourceType) (*model.HospitalPricing, error) {
	query := `
		SELECT id, hospital_id, resource_type, base_rate,
			   service_charge_rate, effective_from, created_at
		FROM hospital_pricing
		WHERE hospital_id = $1
		AND resource_type = $2
		AND effective_from <= $3
		ORDER BY effective_from DESC
		LIMIT 1
	`
	var pricing model.HospitalPricing
	err := r.db.GetContext(ctx, &pricing, query, hospitalID, resourceType, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("pricing", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing: %w", err)
	}
	return &pricing, nil
}
