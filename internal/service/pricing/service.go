package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/money"
)

// Service resolves the active rate for a (hospital, resource type) pair.
// Rates are read on every booking creation and written rarely, so resolved
// rates are cached with a short TTL. Upserts invalidate the cached entry.
type Service struct {
	repo  repository.PricingRepository
	cache *cache.Cache
}

func NewService(repo repository.PricingRepository, cacheTTL time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

func cacheKey(hospitalID uuid.UUID, resourceType model.ResourceType) string {
	return hospitalID.String() + "/" + string(resourceType)
}

// ResolveRate returns the latest effective pricing for the pair, or NotFound
// if no active row exists.
func (s *Service) ResolveRate(ctx context.Context, hospitalID uuid.UUID, resourceType model.ResourceType) (*model.Rate, error) {
	if !resourceType.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource type %q", resourceType), nil)
	}

	key := cacheKey(hospitalID, resourceType)
	if cached, found := s.cache.Get(key); found {
		rate := cached.(model.Rate)
		return &rate, nil
	}

	pricing, err := s.repo.GetActive(ctx, hospitalID, resourceType)
	if err != nil {
		return nil, err
	}

	rate := model.Rate{
		BaseRate:          pricing.BaseRate,
		ServiceChargeRate: pricing.ServiceChargeRate,
	}
	s.cache.SetDefault(key, rate)
	return &rate, nil
}

// UpsertPricing records a new pricing row for the pair and drops the cached
// rate so the next resolve sees it.
func (s *Service) UpsertPricing(ctx context.Context, req *model.UpsertPricingRequest) (*model.HospitalPricing, error) {
	resourceType := model.ResourceType(req.ResourceType)
	if !resourceType.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown resource type %q", req.ResourceType), nil)
	}

	baseRate, err := money.ParseMinor(req.BaseRate)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid base rate", err)
	}
	if baseRate <= 0 {
		return nil, apperrors.InvalidInput("base rate must be positive", nil)
	}

	chargeRate, err := decimal.NewFromString(req.ServiceChargeRate)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid service charge rate", err)
	}
	if chargeRate.IsNegative() || chargeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, apperrors.InvalidInput("service charge rate must be within [0,1]", nil)
	}

	pricing := &model.HospitalPricing{
		HospitalID:        req.HospitalID,
		ResourceType:      resourceType,
		BaseRate:          baseRate,
		ServiceChargeRate: chargeRate,
		EffectiveFrom:     req.EffectiveFrom,
	}
	if err := s.repo.Upsert(ctx, pricing); err != nil {
		return nil, err
	}

	s.cache.Delete(cacheKey(req.HospitalID, resourceType))
	return pricing, nil
}
