// Package numeric holds the decimal scale policy for canonical amounts.
package numeric

import (
	"github.com/shopspring/decimal"
)

// DecimalDigits is the scale of every derived amount.
const DecimalDigits = 8

// Scale rounds d to DecimalDigits places, half away from zero.
func Scale(d decimal.Decimal) decimal.Decimal {
	return d.Round(DecimalDigits)
}

// Format renders d at DecimalDigits places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(DecimalDigits)
}

// NullOrZero reports whether v is absent or equal to zero.
func NullOrZero(v decimal.NullDecimal) bool {
	return !v.Valid || v.Decimal.IsZero()
}

// UnitPrice returns quoteAmount / volume. The result is invalid when either
// input is absent or the volume is zero.
func UnitPrice(quoteAmount decimal.NullDecimal, volume decimal.NullDecimal) decimal.NullDecimal {
	if !quoteAmount.Valid || NullOrZero(volume) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(quoteAmount.Decimal.Div(volume.Decimal))
}
