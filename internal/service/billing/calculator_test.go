package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/rapidcare/billing-api/pkg/errors"
)

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeAmount(t *testing.T) {
	tests := []struct {
		name              string
		baseRate          int64
		durationHours     int
		serviceChargeRate decimal.Decimal
		wantTotal         int64
		wantHospital      int64
		wantServiceCharge int64
	}{
		{
			name:              "bed one hour at thirty percent",
			baseRate:          120,
			durationHours:     1,
			serviceChargeRate: rate("0.30"),
			wantTotal:         120,
			wantHospital:      84,
			wantServiceCharge: 36,
		},
		{
			name:              "operation theatre one hour at thirty percent",
			baseRate:          600,
			durationHours:     1,
			serviceChargeRate: rate("0.30"),
			wantTotal:         600,
			wantHospital:      420,
			wantServiceCharge: 180,
		},
		{
			name:              "multi hour booking",
			baseRate:          120,
			durationHours:     6,
			serviceChargeRate: rate("0.30"),
			wantTotal:         720,
			wantHospital:      504,
			wantServiceCharge: 216,
		},
		{
			name:              "half minor unit rounds up",
			baseRate:          15,
			durationHours:     1,
			serviceChargeRate: rate("0.30"), // 4.5 -> 5
			wantTotal:         15,
			wantHospital:      10,
			wantServiceCharge: 5,
		},
		{
			name:              "below half rounds down",
			baseRate:          114,
			durationHours:     1,
			serviceChargeRate: rate("0.30"), // 34.2 -> 34
			wantTotal:         114,
			wantHospital:      80,
			wantServiceCharge: 34,
		},
		{
			name:              "zero rate gives hospital everything",
			baseRate:          120,
			durationHours:     1,
			serviceChargeRate: rate("0"),
			wantTotal:         120,
			wantHospital:      120,
			wantServiceCharge: 0,
		},
		{
			name:              "full rate gives platform everything",
			baseRate:          120,
			durationHours:     1,
			serviceChargeRate: rate("1"),
			wantTotal:         120,
			wantHospital:      0,
			wantServiceCharge: 120,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := ComputeAmount(tt.baseRate, tt.durationHours, tt.serviceChargeRate)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, split.TotalAmount)
			assert.Equal(t, tt.wantHospital, split.HospitalShare)
			assert.Equal(t, tt.wantServiceCharge, split.ServiceChargeShare)
			assert.Equal(t, split.TotalAmount, split.HospitalShare+split.ServiceChargeShare)
		})
	}
}

func TestComputeAmountSplitAlwaysSumsToTotal(t *testing.T) {
	// The hospital share is computed as a remainder, so the split must sum
	// exactly whatever the rounding did to the service charge.
	rates := []decimal.Decimal{rate("0.01"), rate("0.15"), rate("0.30"), rate("0.333"), rate("0.995")}
	for baseRate := int64(1); baseRate <= 250; baseRate++ {
		for _, r := range rates {
			split, err := ComputeAmount(baseRate, 3, r)
			require.NoError(t, err)
			require.Equal(t, split.TotalAmount, split.HospitalShare+split.ServiceChargeShare,
				"base rate %d at rate %s", baseRate, r)
			require.GreaterOrEqual(t, split.HospitalShare, int64(0))
			require.GreaterOrEqual(t, split.ServiceChargeShare, int64(0))
		}
	}
}

func TestComputeAmountInvalidInput(t *testing.T) {
	tests := []struct {
		name              string
		baseRate          int64
		durationHours     int
		serviceChargeRate decimal.Decimal
	}{
		{"zero base rate", 0, 1, rate("0.30")},
		{"negative base rate", -120, 1, rate("0.30")},
		{"zero duration", 120, 0, rate("0.30")},
		{"negative duration", 120, -2, rate("0.30")},
		{"negative rate", 120, 1, rate("-0.01")},
		{"rate above one", 120, 1, rate("1.01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeAmount(tt.baseRate, tt.durationHours, tt.serviceChargeRate)
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrInvalidInput, appErr.Code)
		})
	}
}
