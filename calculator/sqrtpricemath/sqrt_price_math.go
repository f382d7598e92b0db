package sqrtpricemath

import (
	"errors"
	"math/big"
	"sync"
)

const (
	// resolution is the number of fractional bits in the Q64.96 format.
	resolution = uint(96)
)

var (
	// Q96 is the UQ64.96 fixed-point number representing 1.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	ErrLiquidityZero = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")
	// ErrPriceOverflow is returned when the requested output exhausts the
	// available liquidity: the next price would be zero or reversed.
	ErrPriceOverflow = errors.New("price movement not achievable with given liquidity")

	one = big.NewInt(1)
)

// scratch holds reusable big.Int objects so the conversion routines stay
// allocation-free. Instances are managed by a sync.Pool for safe concurrent use.
type scratch struct {
	product     *big.Int
	numerator1  *big.Int
	numerator2  *big.Int
	denominator *big.Int
	quotient    *big.Int
	term        *big.Int
	rem         *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			product:     new(big.Int),
			numerator1:  new(big.Int),
			numerator2:  new(big.Int),
			denominator: new(big.Int),
			quotient:    new(big.Int),
			term:        new(big.Int),
			rem:         new(big.Int),
		}
	},
}

// mulDiv writes (a * b) / c into dest.
func (s *scratch) mulDiv(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Div(s.product, c)
}

// mulDivRoundingUp writes ceil((a * b) / c) into dest.
func (s *scratch) mulDivRoundingUp(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Div(s.product, c)
	if s.rem.Rem(s.product, c).Sign() > 0 {
		dest.Add(dest, one)
	}
}

// divRoundingUp writes ceil(a / b) into dest.
func (s *scratch) divRoundingUp(dest, a, b *big.Int) {
	dest.Div(a, b)
	if s.rem.Rem(a, b).Sign() > 0 {
		dest.Add(dest, one)
	}
}

// GetNextSqrtPriceFromAmount0RoundingUp writes the price after adding or
// removing a delta of token0 at the given liquidity. Rounds up so the swap
// never moves the price past its true target.
func GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)
	return s.nextSqrtPriceFromAmount0(dest, sqrtPX96, liquidity, amount, add)
}

// GetNextSqrtPriceFromAmount1RoundingDown writes the price after adding or
// removing a delta of token1 at the given liquidity. Rounds down.
func GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)
	return s.nextSqrtPriceFromAmount1(dest, sqrtPX96, liquidity, amount, add)
}

// GetNextSqrtPriceFromInput picks the token variant and rounding direction so
// the result may undershoot but never overshoot the true post-swap price.
func GetNextSqrtPriceFromInput(dest, sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput is the dual of GetNextSqrtPriceFromInput; it
// fails when the requested output cannot be produced by the given liquidity.
func GetNextSqrtPriceFromOutput(dest, sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta writes the amount0 delta between two prices:
// liquidity * (sqrtB - sqrtA) * 2^96 / (sqrtA * sqrtB).
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)
	return s.amount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity, roundUp)
}

// GetAmount1Delta writes the amount1 delta between two prices:
// liquidity * (sqrtB - sqrtA) / 2^96.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)
	s.amount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity, roundUp)
}

func (s *scratch) nextSqrtPriceFromAmount0(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	if amount.Sign() == 0 {
		dest.Set(sqrtPX96)
		return nil
	}

	s.numerator1.Lsh(liquidity, resolution)

	if add {
		// Prefer liquidity * sqrtP / (liquidity + amount * sqrtP) when the
		// product fits; the fallback form loses at most 1 ulp of precision.
		s.product.Mul(amount, sqrtPX96)
		if s.quotient.Div(s.product, amount).Cmp(sqrtPX96) == 0 {
			s.denominator.Add(s.numerator1, s.product)
			if s.denominator.Cmp(s.numerator1) >= 0 {
				s.mulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
				return nil
			}
		}
		s.denominator.Div(s.numerator1, sqrtPX96)
		s.denominator.Add(s.denominator, amount)
		s.divRoundingUp(dest, s.numerator1, s.denominator)
		return nil
	}

	s.product.Mul(amount, sqrtPX96)
	if s.quotient.Div(s.product, amount).Cmp(sqrtPX96) != 0 || s.numerator1.Cmp(s.product) <= 0 {
		return ErrPriceOverflow
	}
	s.denominator.Sub(s.numerator1, s.product)
	s.mulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
	return nil
}

func (s *scratch) nextSqrtPriceFromAmount1(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	if add {
		s.mulDiv(s.quotient, amount, Q96, liquidity)
		dest.Add(sqrtPX96, s.quotient)
		return nil
	}

	s.mulDivRoundingUp(s.quotient, amount, Q96, liquidity)
	if sqrtPX96.Cmp(s.quotient) <= 0 {
		return ErrPriceOverflow
	}
	dest.Sub(sqrtPX96, s.quotient)
	return nil
}

func (s *scratch) amount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}

	s.numerator1.Lsh(liquidity, resolution)
	s.numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		s.mulDivRoundingUp(s.term, s.numerator1, s.numerator2, sqrtRatioBX96)
		s.divRoundingUp(dest, s.term, sqrtRatioAX96)
	} else {
		s.mulDiv(s.term, s.numerator1, s.numerator2, sqrtRatioBX96)
		dest.Div(s.term, sqrtRatioAX96)
	}
	return nil
}

func (s *scratch) amount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	s.numerator1.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		s.mulDivRoundingUp(dest, liquidity, s.numerator1, Q96)
	} else {
		s.mulDiv(dest, liquidity, s.numerator1, Q96)
	}
}
