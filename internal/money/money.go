// Package money provides the fixed-point decimal primitives used by every
// monetary calculation in the pipeline. Currency amounts are stored at two
// fractional digits; intermediate tax computations carry six so rounding only
// happens once, at the point a value is persisted or displayed.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const (
	// CurrencyScale is the number of fractional digits for stored currency amounts.
	CurrencyScale = 2
	// RateScale is the maximum number of fractional digits accepted for percentages.
	RateScale = 4
	// intermediateScale keeps cascade intermediates well above currency precision.
	intermediateScale = 6
)

var hundred = decimal.NewFromInt(100)

// RoundCurrency rounds half-up to two decimal places. decimal.Round rounds
// half away from zero, which is half-up for the non-negative amounts handled here.
func RoundCurrency(v decimal.Decimal) decimal.Decimal {
	return v.Round(CurrencyScale)
}

// ApplyRate multiplies an amount by a percentage (0-100) at intermediate precision.
func ApplyRate(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).DivRound(hundred, intermediateScale)
}

// GrossUp computes base / (1 - percent/100) * percent/100 for tax-on-tax bases.
// Rearranged as base * percent / (100 - percent) to divide exactly once.
// The caller must have rejected percent >= 100 beforehand.
func GrossUp(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).DivRound(hundred.Sub(percent), intermediateScale)
}

// DivideByQuantity returns total / qty rounded to currency scale.
// A zero or negative quantity is a programming error, never a silent infinity.
func DivideByQuantity(total, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("money: divide by quantity %s: %w", qty, shared.ErrInvalidQuantity)
	}
	return total.DivRound(qty, CurrencyScale), nil
}

// ValidatePercent rejects percentages outside [0, 100].
func ValidatePercent(name string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return fmt.Errorf("money: %s rate %s out of range: %w", name, percent, shared.ErrInvalidTaxRate)
	}
	return nil
}

// ParseAmount parses a decimal amount serialized at the service boundary.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse amount %q: %w", raw, shared.ErrValidation)
	}
	return d, nil
}
