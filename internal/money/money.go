// Package money centralises financial rounding so ledger, inventory and
// document totals stay reconcilable with each other.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return f
}

// Mul multiplies a quantity by a unit amount and rounds the result.
func Mul(qty, unit float64) float64 {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || math.IsNaN(unit) || math.IsInf(unit, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unit)).Round(2).Float64()
	return f
}

// Pct returns the rounded percentage share of an amount.
func Pct(amount, percent float64) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || math.IsNaN(percent) || math.IsInf(percent, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return f
}

// Equal compares two amounts at 2-decimal precision.
func Equal(a, b float64) bool {
	return Round2(a) == Round2(b)
}
