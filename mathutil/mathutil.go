package mathutil

import (
	"golang.org/x/exp/constraints"
)

// DivCeil returns a/b rounded towards positive infinity.
func DivCeil[T constraints.Signed](a, b T) T {
	if b == 0 {
		panic("division by zero")
	}

	q := a / b
	if r := a % b; r != 0 && (r > 0) == (b > 0) {
		q++
	}

	return q
}

// Digits returns the number of decimal digits of n, ignoring the sign.
// Digits(0) is 1.
func Digits[T constraints.Integer](n T) int {
	if n < 0 {
		n = -n
	}

	d := 1
	for n >= 10 {
		n /= 10
		d++
	}

	return d
}
