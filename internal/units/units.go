// Package units provides rate conversion and rounding helpers shared by the
// drive policies and instrument drivers.
package units

import "math"

// PerMinute converts a rate expressed per second to the same rate per minute.
// Magnet controllers take ramp rates in units per minute while the public
// API works in units per second.
func PerMinute(perSecond float64) float64 {
	return perSecond * 60
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Within reports whether a and b differ by less than tol.
func Within(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}
