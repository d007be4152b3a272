package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rapidcare/billing-api/internal/model"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

var one = decimal.NewFromInt(1)

// ComputeAmount derives a booking's total and its hospital/service-charge
// split. All amounts are currency minor units.
//
// The service-charge share is rounded half-up at this single site; the
// hospital share is the remainder, never an independent multiplication, so
// HospitalShare + ServiceChargeShare == TotalAmount holds exactly.
func ComputeAmount(baseRate int64, durationHours int, serviceChargeRate decimal.Decimal) (model.AmountSplit, error) {
	if baseRate <= 0 {
		return model.AmountSplit{}, apperrors.InvalidInput("base rate must be positive", nil)
	}
	if durationHours <= 0 {
		return model.AmountSplit{}, apperrors.InvalidInput("duration must be positive", nil)
	}
	if serviceChargeRate.IsNegative() || serviceChargeRate.GreaterThan(one) {
		return model.AmountSplit{}, apperrors.InvalidInput(
			fmt.Sprintf("service charge rate %s outside [0,1]", serviceChargeRate), nil)
	}

	total := baseRate * int64(durationHours)

	// decimal.Round rounds half away from zero; amounts here are positive so
	// this is round-half-up to the minor unit.
	serviceCharge := decimal.NewFromInt(total).Mul(serviceChargeRate).Round(0).IntPart()
	hospitalShare := total - serviceCharge

	return model.AmountSplit{
		TotalAmount:        total,
		HospitalShare:      hospitalShare,
		ServiceChargeShare: serviceCharge,
	}, nil
}
