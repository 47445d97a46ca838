package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// ToCents converts an amount to integer minor units. Amounts are kept to two
// decimal places, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// FromCents converts integer minor units back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Round2 rounds to two decimal places, half away from zero (half-up for the
// non-negative values this system stores).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percentage returns spent/limit*100. ok is false when limit is zero and
// spent is positive, where the ratio is unbounded.
func Percentage(spent, limit decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if limit.IsZero() {
		if spent.IsPositive() {
			return decimal.Zero, false
		}
		return decimal.Zero, true
	}
	return spent.Div(limit).Mul(hundred), true
}
