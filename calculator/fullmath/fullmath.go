package fullmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// Q128 is the fixed-point scaling factor used by the fee-growth accumulators.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	ErrDenominatorZero = errors.New("denominator must be greater than zero")
	ErrResultOverflow  = errors.New("result exceeds 256 bits")

	one        = uint256.NewInt(1)
	maxUint256 = new(uint256.Int).Not(uint256.NewInt(0))
)

// MulDiv writes floor(a * b / denominator) into dest, computing the product at
// full 512-bit precision. It fails when the denominator is zero or the final
// result does not fit in 256 bits.
func MulDiv(dest, a, b, denominator *uint256.Int) error {
	if denominator.IsZero() {
		return ErrDenominatorZero
	}
	if _, overflow := dest.MulDivOverflow(a, b, denominator); overflow {
		return ErrResultOverflow
	}
	return nil
}

// MulDivRoundingUp writes ceil(a * b / denominator) into dest. The extra unit
// is added only when the division leaves a remainder, and the rounded result
// must still fit in 256 bits.
func MulDivRoundingUp(dest, a, b, denominator *uint256.Int) error {
	if err := MulDiv(dest, a, b, denominator); err != nil {
		return err
	}
	var rem uint256.Int
	rem.MulMod(a, b, denominator)
	if !rem.IsZero() {
		if dest.Eq(maxUint256) {
			return ErrResultOverflow
		}
		dest.Add(dest, one)
	}
	return nil
}

// DivRoundingUp writes ceil(a / denominator) into dest.
func DivRoundingUp(dest, a, denominator *uint256.Int) error {
	if denominator.IsZero() {
		return ErrDenominatorZero
	}
	var rem uint256.Int
	dest.DivMod(a, denominator, &rem)
	if !rem.IsZero() {
		dest.Add(dest, one)
	}
	return nil
}
