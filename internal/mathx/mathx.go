// Package mathx provides small generic numeric helpers used across the
// pose pipeline.
package mathx

import "cmp"

// Number is any integer or floating point type.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Float is a floating point type.
type Float interface {
	~float32 | ~float64
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Lerp interpolates between a and b. t is clamped into [0, 1] and the result
// always lies between a and b inclusive, so Lerp(a, a, t) is exactly a.
func Lerp[T Float](a, b, t T) T {
	switch {
	case t >= 1:
		return b
	case t <= 0:
		return a
	}
	// Rounding can put the blend one ulp outside the endpoints.
	return Clamp(a*(1-t)+b*t, min(a, b), max(a, b))
}

// Sign returns -1, 0 or 1 according to the sign of v.
func Sign[T Number](v T) T {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return T(0) - 1
	default:
		return 0
	}
}

// Abs returns the absolute value of v.
func Abs[T Number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
