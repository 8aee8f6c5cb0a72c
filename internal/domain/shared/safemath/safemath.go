// Package safemath holds the overflow-checked integer helpers every balance,
// supply and vesting computation goes through. Each helper returns a domain
// error instead of wrapping or truncating.
package safemath

import (
	"math"
	"math/bits"

	"github.com/presale/backend/internal/domain/shared"
)

// Add returns a + b or ErrOverflow
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, shared.ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b or ErrUnderflow when b > a
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, shared.ErrUnderflow
	}
	return diff, nil
}

// Mul returns a * b or ErrOverflow
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, shared.ErrOverflow
	}
	return lo, nil
}

// Div returns a / b or ErrDivisionByZero
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, shared.ErrDivisionByZero
	}
	return a / b, nil
}

// MulDiv returns floor(a * b / c). The product is held in 128 bits, so it
// only fails when c is zero or the quotient itself exceeds 64 bits.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, shared.ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, shared.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// SubInt64 returns a - b for signed timestamps or ErrOverflow/ErrUnderflow
func SubInt64(a, b int64) (int64, error) {
	diff := a - b
	// signs of a and b differ and the result's sign differs from a
	if (a >= 0) != (b >= 0) && (diff >= 0) != (a >= 0) {
		if a >= 0 {
			return 0, shared.ErrOverflow
		}
		return 0, shared.ErrUnderflow
	}
	return diff, nil
}

// AddInt64Uint64 adds an unsigned duration to a signed timestamp
func AddInt64Uint64(a int64, b uint64) (int64, error) {
	if b > math.MaxInt64 {
		return 0, shared.ErrOverflow
	}
	if a > 0 && int64(b) > math.MaxInt64-a {
		return 0, shared.ErrOverflow
	}
	return a + int64(b), nil
}
