package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcare/billing-api/internal/model"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

type stubPricingRepo struct {
	rows           []*model.HospitalPricing
	getActiveCalls int
}

func (r *stubPricingRepo) Upsert(ctx context.Context, pricing *model.HospitalPricing) error {
	pricing.ID = uuid.New()
	pricing.CreatedAt = time.Now()
	r.rows = append(r.rows, pricing)
	return nil
}

// GetActive mirrors the query: latest effective_from not in the future wins.
func (r *stubPricingRepo) GetActive(ctx context.Context, hospitalID uuid.UUID, resourceType model.ResourceType) (*model.HospitalPricing, error) {
	r.getActiveCalls++
	now := time.Now()
	var active *model.HospitalPricing
	for _, row := range r.rows {
		if row.HospitalID != hospitalID || row.ResourceType != resourceType || row.EffectiveFrom.After(now) {
			continue
		}
		if active == nil || row.EffectiveFrom.After(active.EffectiveFrom) {
			active = row
		}
	}
	if active == nil {
		return nil, apperrors.NotFound("pricing", nil)
	}
	return active, nil
}

func upsertRequest(hospitalID uuid.UUID, baseRate, chargeRate string, effectiveFrom time.Time) *model.UpsertPricingRequest {
	return &model.UpsertPricingRequest{
		HospitalID:        hospitalID,
		ResourceType:      "bed",
		BaseRate:          baseRate,
		ServiceChargeRate: chargeRate,
		EffectiveFrom:     effectiveFrom,
	}
}

func TestResolveRateLatestEffectiveWins(t *testing.T) {
	repo := &stubPricingRepo{}
	service := NewService(repo, time.Minute)
	hospitalID := uuid.New()
	ctx := context.Background()

	_, err := service.UpsertPricing(ctx, upsertRequest(hospitalID, "100.00", "0.20", time.Now().Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = service.UpsertPricing(ctx, upsertRequest(hospitalID, "120.00", "0.30", time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	// Scheduled for the future, must not be picked up yet.
	_, err = service.UpsertPricing(ctx, upsertRequest(hospitalID, "900.00", "0.50", time.Now().Add(48*time.Hour)))
	require.NoError(t, err)

	rate, err := service.ResolveRate(ctx, hospitalID, model.ResourceTypeBed)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), rate.BaseRate)
	assert.True(t, rate.ServiceChargeRate.Equal(decimal.RequireFromString("0.30")))
}

func TestResolveRateCaches(t *testing.T) {
	repo := &stubPricingRepo{}
	service := NewService(repo, time.Minute)
	hospitalID := uuid.New()
	ctx := context.Background()

	_, err := service.UpsertPricing(ctx, upsertRequest(hospitalID, "120.00", "0.30", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := service.ResolveRate(ctx, hospitalID, model.ResourceTypeBed)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.getActiveCalls)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	repo := &stubPricingRepo{}
	service := NewService(repo, time.Minute)
	hospitalID := uuid.New()
	ctx := context.Background()

	_, err := service.UpsertPricing(ctx, upsertRequest(hospitalID, "120.00", "0.30", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	rate, err := service.ResolveRate(ctx, hospitalID, model.ResourceTypeBed)
	require.NoError(t, err)
	require.Equal(t, int64(12000), rate.BaseRate)

	_, err = service.UpsertPricing(ctx, upsertRequest(hospitalID, "150.00", "0.30", time.Now()))
	require.NoError(t, err)

	rate, err = service.ResolveRate(ctx, hospitalID, model.ResourceTypeBed)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), rate.BaseRate)
}

func TestResolveRateNoPricing(t *testing.T) {
	service := NewService(&stubPricingRepo{}, time.Minute)

	_, err := service.ResolveRate(context.Background(), uuid.New(), model.ResourceTypeICU)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestResolveRateUnknownResourceType(t *testing.T) {
	service := NewService(&stubPricingRepo{}, time.Minute)

	_, err := service.ResolveRate(context.Background(), uuid.New(), model.ResourceType("helipad"))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrInvalidInput, appErr.Code)
}

func TestUpsertPricingValidation(t *testing.T) {
	tests := []struct {
		name       string
		baseRate   string
		chargeRate string
	}{
		{"zero base rate", "0", "0.30"},
		{"negative base rate", "-120", "0.30"},
		{"malformed base rate", "12.345", "0.30"},
		{"non numeric base rate", "abc", "0.30"},
		{"negative charge rate", "120", "-0.10"},
		{"charge rate above one", "120", "1.10"},
		{"malformed charge rate", "120", "thirty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&stubPricingRepo{}, time.Minute)
			_, err := service.UpsertPricing(context.Background(),
				upsertRequest(uuid.New(), tt.baseRate, tt.chargeRate, time.Now()))
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrInvalidInput, appErr.Code)
		})
	}
}
