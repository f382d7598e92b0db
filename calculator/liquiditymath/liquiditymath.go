package liquiditymath

import (
	"errors"
	"math/big"
)

var (
	// maxUint128 is the maximum value for a uint128 (2^128 - 1).
	maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
)

// AddDelta adds a signed liquidity delta to an unsigned 128-bit liquidity
// value, returning an error if the operation overflows or underflows.
func AddDelta(dest *big.Int, x *big.Int, y *big.Int) error {
	dest.Add(x, y)

	if dest.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if dest.Cmp(maxUint128) > 0 {
		return ErrLiquidityOverflow
	}
	return nil
}

// MaxLiquidityPerTick computes the maximum gross liquidity a single tick may
// reference so that the sum over all usable ticks cannot overflow a uint128.
func MaxLiquidityPerTick(minTick, maxTick, tickSpacing int32) *big.Int {
	minUsable := (minTick / tickSpacing) * tickSpacing
	maxUsable := (maxTick / tickSpacing) * tickSpacing
	numTicks := int64((maxUsable-minUsable)/tickSpacing) + 1
	return new(big.Int).Div(maxUint128, big.NewInt(numTicks))
}
