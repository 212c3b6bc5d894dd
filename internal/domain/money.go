package domain

import "github.com/shopspring/decimal"

// ToMinorUnits converts a display amount in major currency units (e.g. dollars)
// to integer minor units (cents). Legacy call sites still deliver fractional
// major-unit amounts at the boundary; everything past this function works in
// integer cents. Rounding is half-up (half away from zero).
func ToMinorUnits(major float64) int64 {
	return decimal.NewFromFloat(major).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// ToMajorUnits converts integer minor units back to a display amount. Only for
// presentation; never feed the result back into state.
func ToMajorUnits(minor int64) float64 {
	f, _ := decimal.NewFromInt(minor).
		Div(decimal.NewFromInt(100)).
		Float64()
	return f
}
