package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// ScaleDiv returns v*num/den with 64-bit intermediates, truncating.
// den==0 yields 0.
func ScaleDiv[T constraints.Unsigned](v, num, den T) T {
	if den == 0 {
		return 0
	}
	return T(uint64(v) * uint64(num) / uint64(den))
}
