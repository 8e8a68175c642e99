package money

import "math"

// Tolerance is the accepted drift when comparing monetary amounts:
// one currency unit, covering percentage rounding on shares.
const Tolerance = 1.0

// RoundCurrency rounds to the nearest whole currency unit, half away from zero.
func RoundCurrency(amount float64) float64 {
	return math.Round(amount)
}

// Equals reports whether two amounts agree within Tolerance.
func Equals(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}

// GreaterThan reports whether a exceeds b beyond Tolerance.
func GreaterThan(a, b float64) bool {
	return a-b > Tolerance
}
