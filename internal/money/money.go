// Package money converts between display-currency amounts and the payment
// processor's integer minor-unit representation (paise for INR).
//
// All arithmetic is exact decimal arithmetic; amounts never pass through
// floats, so there is no rounding drift between what the customer sees and
// what is sent to the processor.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the number of minor-unit digits for the supported
// currency (2 for INR: 1 rupee = 100 paise).
const MinorUnitDigits = 2

// ErrInvalidAmount indicates an amount that cannot be represented in minor
// units: negative, or carrying more precision than the currency supports.
var ErrInvalidAmount = fmt.Errorf("invalid amount")

var minorUnitFactor = decimal.New(1, MinorUnitDigits)

// ToMinorUnits converts a display-currency amount to integer minor units.
// The conversion is exact: amounts with sub-minor-unit precision (e.g.
// 19.999) are rejected rather than silently rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}

	minor := amount.Mul(minorUnitFactor)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s has sub-minor-unit precision", ErrInvalidAmount, amount)
	}
	// IntPart truncates out-of-range big integers, so guard before calling it.
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s exceeds representable minor units", ErrInvalidAmount, amount)
	}

	return minor.IntPart(), nil
}

// FromMinorUnits converts integer minor units back to a display-currency
// amount. FromMinorUnits(ToMinorUnits(x)) == x for every representable x.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitDigits)
}
