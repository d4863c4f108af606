package math

import "golang.org/x/exp/constraints"

func DivRoundUp[T constraints.Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

func Min[T constraints.Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Integer](a, b T) T {
	if a > b {
		return a
	}
	return b
}
