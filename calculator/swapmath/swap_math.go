package swapmath

import (
	"math/big"
	"sync"

	"github.com/defistate/defistate-pair-go/calculator/sqrtpricemath"
)

var (
	// feeDenominator expresses fees in parts-per-million (100% == 1e6 pips).
	feeDenominator = big.NewInt(1_000_000)
	one            = big.NewInt(1)
)

// scratch holds reusable big.Int objects for one swap-step computation.
// Instances are managed by a sync.Pool for safe concurrent use.
type scratch struct {
	sqrtRatioNextX96 *big.Int
	amountIn         *big.Int
	amountOut        *big.Int
	feeAmount        *big.Int

	amountRemainingLessFee *big.Int
	amountRemainingAbs     *big.Int
	tempValue              *big.Int
	product                *big.Int
	rem                    *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			sqrtRatioNextX96:       new(big.Int),
			amountIn:               new(big.Int),
			amountOut:              new(big.Int),
			feeAmount:              new(big.Int),
			amountRemainingLessFee: new(big.Int),
			amountRemainingAbs:     new(big.Int),
			tempValue:              new(big.Int),
			product:                new(big.Int),
			rem:                    new(big.Int),
		}
	},
}

// ComputeSwapStep runs one step of a swap within a constant-liquidity
// segment. Given the current and target prices, the active liquidity, the
// signed remaining amount (positive: exact input, negative: exact output) and
// the fee in pips, it writes the resulting price, the amounts consumed and
// produced, and the fee taken into the destination pointers.
func ComputeSwapStep(
	// destination pointers
	sqrtRatioNextX96 *big.Int,
	amountIn *big.Int,
	amountOut *big.Int,
	feeAmount *big.Int,

	sqrtRatioCurrentX96 *big.Int,
	sqrtRatioTargetX96 *big.Int,
	liquidity *big.Int,
	amountRemaining *big.Int,
	feePips uint64,
) error {
	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	if err := s.computeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining, feePips); err != nil {
		return err
	}

	sqrtRatioNextX96.Set(s.sqrtRatioNextX96)
	amountIn.Set(s.amountIn)
	amountOut.Set(s.amountOut)
	feeAmount.Set(s.feeAmount)
	return nil
}

func (s *scratch) computeSwapStep(
	sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *big.Int,
	feePips uint64,
) error {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	exactIn := amountRemaining.Sign() >= 0
	fee := s.tempValue.SetUint64(feePips)

	s.amountIn.SetInt64(0)
	s.amountOut.SetInt64(0)
	s.feeAmount.SetInt64(0)

	if exactIn {
		feeComplement := new(big.Int).Sub(feeDenominator, fee)
		s.mulDiv(s.amountRemainingLessFee, amountRemaining, feeComplement, feeDenominator)

		if zeroForOne {
			if err := sqrtpricemath.GetAmount0Delta(s.amountIn, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return err
			}
		} else {
			sqrtpricemath.GetAmount1Delta(s.amountIn, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}

		if s.amountRemainingLessFee.Cmp(s.amountIn) >= 0 {
			// Enough input to reach the target price.
			s.sqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else if err := sqrtpricemath.GetNextSqrtPriceFromInput(s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.amountRemainingLessFee, zeroForOne); err != nil {
			return err
		}
	} else {
		s.amountRemainingAbs.Neg(amountRemaining)

		if zeroForOne {
			sqrtpricemath.GetAmount1Delta(s.amountOut, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			if err := sqrtpricemath.GetAmount0Delta(s.amountOut, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false); err != nil {
				return err
			}
		}

		if s.amountRemainingAbs.Cmp(s.amountOut) >= 0 {
			s.sqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else if err := sqrtpricemath.GetNextSqrtPriceFromOutput(s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.amountRemainingAbs, zeroForOne); err != nil {
			return err
		}
	}

	max := sqrtRatioTargetX96.Cmp(s.sqrtRatioNextX96) == 0

	// Recompute the amounts from the price actually reached; the pre-computed
	// value stands only when the step exactly hit the target.
	if zeroForOne {
		if !(max && exactIn) {
			if err := sqrtpricemath.GetAmount0Delta(s.amountIn, s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return err
			}
		}
		if !(max && !exactIn) {
			sqrtpricemath.GetAmount1Delta(s.amountOut, s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
		}
	} else {
		if !(max && exactIn) {
			sqrtpricemath.GetAmount1Delta(s.amountIn, sqrtRatioCurrentX96, s.sqrtRatioNextX96, liquidity, true)
		}
		if !(max && !exactIn) {
			if err := sqrtpricemath.GetAmount0Delta(s.amountOut, sqrtRatioCurrentX96, s.sqrtRatioNextX96, liquidity, false); err != nil {
				return err
			}
		}
	}

	// Never hand out more than the exact-output request.
	if !exactIn && s.amountOut.Cmp(s.amountRemainingAbs) > 0 {
		s.amountOut.Set(s.amountRemainingAbs)
	}

	if exactIn && s.sqrtRatioNextX96.Cmp(sqrtRatioTargetX96) != 0 {
		// Didn't reach the target: the whole leftover input is the fee, which
		// keeps amountIn + feeAmount == consumed input exact.
		s.feeAmount.Sub(amountRemaining, s.amountIn)
	} else {
		feeComplement := new(big.Int).Sub(feeDenominator, s.tempValue.SetUint64(feePips))
		s.mulDivRoundingUp(s.feeAmount, s.amountIn, s.tempValue.SetUint64(feePips), feeComplement)
	}

	return nil
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
