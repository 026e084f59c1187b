// Package ledger implements the invoice segmentation and rollup pipeline and
// the analytical views built on top of it: period comparison, threshold
// alerts and the naive trend projection.
//
// Every function is pure: inputs are never mutated and results are freshly
// allocated, so callers can share one loaded snapshot across requests.
package ledger

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// epsilon is the smallest denominator treated as non-zero.
const epsilon = 1e-9

// SafeRatio returns num/den, or 0 when den is zero or near zero.
// The result is never NaN or infinite.
func SafeRatio(num, den float64) float64 {
	if math.IsNaN(den) || math.Abs(den) < epsilon {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// ProfitPct is profit/sales×100, defined as 0 when sales ≤ 0.
func ProfitPct(profit, sales float64) float64 {
	if sales < epsilon {
		return 0
	}
	return SafeRatio(profit, sales) * 100
}

// PctChange returns (b−a)/|a|×100 rounded to one decimal.
// ok is false when a is zero; the change is then reported as 0.
func PctChange(a, b float64) (pct float64, ok bool) {
	if math.Abs(a) < epsilon {
		return 0, false
	}
	return Round1(SafeRatio(b-a, math.Abs(a)) * 100), true
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// LessBranch orders branch ids numerically when both are numbers,
// lexically otherwise, so "2" sorts before "12".
func LessBranch(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		if ai != bi {
			return ai < bi
		}
		return a < b
	}
	if (aErr == nil) != (bErr == nil) {
		return aErr == nil
	}
	return a < b
}
