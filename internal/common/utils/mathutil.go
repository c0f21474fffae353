package utils

import (
	"cmp"
	"math"
)

// Clamp clamps v into the inclusive [lo, hi] range.
// If lo > hi, the bounds are swapped.
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt is Clamp for ints, kept for call sites that read better without type inference.
func ClampInt(v, lo, hi int) int { return Clamp(v, lo, hi) }

// MinMaxInt returns the smallest and largest of vals. Returns 0,0 if empty.
func MinMaxInt(vals ...int) (int, int) {
	if len(vals) == 0 {
		return 0, 0
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Mean returns the arithmetic mean of vals. Returns 0 if empty.
func Mean(vals ...float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
