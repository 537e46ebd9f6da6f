package core

import "golang.org/x/exp/constraints"

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Wrap returns v modulo n in [0, n) for any sign of v.
func Wrap[T constraints.Integer](v, n T) T {
	r := v % n
	if r < 0 {
		r += n
	}
	return r
}

func IsPowerOfTwo[T constraints.Integer](v T) bool {
	return v > 0 && v&(v-1) == 0
}
