package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestRoundCurrencyHalfUp(t *testing.T) {
	require.Equal(t, "1.01", RoundCurrency(dec(t, "1.005")).StringFixed(2))
	require.Equal(t, "1.00", RoundCurrency(dec(t, "1.004")).StringFixed(2))
	require.Equal(t, "3319.53", RoundCurrency(dec(t, "3319.527272")).StringFixed(2))
}

func TestApplyRateKeepsIntermediatePrecision(t *testing.T) {
	got := ApplyRate(dec(t, "20700.00"), dec(t, "1.65"))
	require.Equal(t, "341.550000", got.StringFixed(6))

	// 1/3% of 100 must not collapse to currency scale mid-cascade.
	got = ApplyRate(dec(t, "100"), dec(t, "0.3333"))
	require.Equal(t, "0.333300", got.StringFixed(6))
}

func TestGrossUp(t *testing.T) {
	// 24343.20 / (1 - 0.12) * 0.12
	got := GrossUp(dec(t, "24343.20"), dec(t, "12"))
	require.Equal(t, "3319.527273", got.StringFixed(6))
}

func TestDivideByQuantity(t *testing.T) {
	unit, err := DivideByQuantity(dec(t, "100.00"), dec(t, "3"))
	require.NoError(t, err)
	require.Equal(t, "33.33", unit.StringFixed(2))

	_, err = DivideByQuantity(dec(t, "100.00"), decimal.Zero)
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)

	_, err = DivideByQuantity(dec(t, "100.00"), dec(t, "-2"))
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
}

func TestValidatePercent(t *testing.T) {
	require.NoError(t, ValidatePercent("icms", dec(t, "0")))
	require.NoError(t, ValidatePercent("icms", dec(t, "100")))
	require.ErrorIs(t, ValidatePercent("icms", dec(t, "-0.01")), shared.ErrInvalidTaxRate)
	require.ErrorIs(t, ValidatePercent("icms", dec(t, "100.01")), shared.ErrInvalidTaxRate)
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("3750.00")
	require.NoError(t, err)
	require.Equal(t, "3750.00", d.StringFixed(2))

	_, err = ParseAmount("12,5")
	require.ErrorIs(t, err, shared.ErrValidation)
}
