/*
Package core holds the small set of types every other package shares.

PURPOSE:
  Money arithmetic and the error taxonomy used across pricing, ledger,
  reconciliation and refund allocation. Nothing in here performs I/O.

KEY CONCEPTS IN THIS FILE (money.go):
  - All amounts are decimal.Decimal. Never float64.
  - Helpers for the handful of operations the engine repeats everywhere:
    clamping at zero, min/max, summing, parsing from wire strings.

DESIGN PRINCIPLES:
  1. Precision: decimal arithmetic avoids floating-point drift in totals
  2. Purity: helpers never mutate their inputs
  3. Explicit zero: helpers return decimal.Zero rather than the zero struct

USAGE:
  total := core.Sum(guest, addons, custom)
  refundable := core.NonNegative(charge.Sub(refunded))

SEE ALSO:
  - errors.go: Error taxonomy
  - pricing/calculator.go: Main consumer of these helpers
*/
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Cents converts an integer amount of minor units to a decimal amount.
func Cents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Dollars returns a whole-unit decimal amount.
func Dollars(d int64) decimal.Decimal {
	return decimal.NewFromInt(d)
}

// MustParseDecimal parses s or returns zero. Used for values read back from
// storage that were written by this package.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmount parses a user-supplied amount string.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: fmt.Sprintf("not a decimal amount: %q", s)}
	}
	return d, nil
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds all values. Sum() is zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Times multiplies a unit amount by an integer quantity.
func Times(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
