package ticktable

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/defistate-pair-go/calculator/liquiditymath"
)

// ErrLiquidityPerTickExceeded is returned when a mint would push a tick's
// gross liquidity past the per-tick cap.
var ErrLiquidityPerTickExceeded = errors.New("LO")

// Tick holds the bookkeeping for one initialized tick. The "outside"
// accumulators are defined relative to which side of the current tick this
// tick lies on; all fee subtractions against them wrap mod 2^256 by design.
type Tick struct {
	LiquidityGross                 *big.Int
	LiquidityNet                   *big.Int
	FeeGrowthOutside0X128          *uint256.Int
	FeeGrowthOutside1X128          *uint256.Int
	TickCumulativeOutside          int64
	SecondsPerLiquidityOutsideX128 *uint256.Int
	SecondsOutside                 uint32
}

func newTick() *Tick {
	return &Tick{
		LiquidityGross:                 new(big.Int),
		LiquidityNet:                   new(big.Int),
		FeeGrowthOutside0X128:          new(uint256.Int),
		FeeGrowthOutside1X128:          new(uint256.Int),
		SecondsPerLiquidityOutsideX128: new(uint256.Int),
	}
}

// Initialized reports whether the tick is referenced by any position.
func (t *Tick) Initialized() bool {
	return t.LiquidityGross.Sign() > 0
}

func (t *Tick) clone() *Tick {
	return &Tick{
		LiquidityGross:                 new(big.Int).Set(t.LiquidityGross),
		LiquidityNet:                   new(big.Int).Set(t.LiquidityNet),
		FeeGrowthOutside0X128:          new(uint256.Int).Set(t.FeeGrowthOutside0X128),
		FeeGrowthOutside1X128:          new(uint256.Int).Set(t.FeeGrowthOutside1X128),
		TickCumulativeOutside:          t.TickCumulativeOutside,
		SecondsPerLiquidityOutsideX128: new(uint256.Int).Set(t.SecondsPerLiquidityOutsideX128),
		SecondsOutside:                 t.SecondsOutside,
	}
}

// Table indexes tick bookkeeping by tick index. Entries exist only while
// referenced (LiquidityGross > 0); Clear removes them.
type Table map[int32]*Tick

// New returns an empty tick table.
func New() Table {
	return make(Table)
}

// Get returns the tick entry, or nil if the tick is not initialized.
func (tt Table) Get(tick int32) *Tick {
	return tt[tick]
}

// Clone returns a deep copy of the table.
func (tt Table) Clone() Table {
	c := make(Table, len(tt))
	for idx, t := range tt {
		c[idx] = t.clone()
	}
	return c
}

// Update applies a liquidity delta to one boundary of a position, creating
// the tick entry on first reference. A newly initialized tick at or below the
// current tick snapshots the running accumulators as its "outside" values, so
// that fee-growth-inside reduces correctly wherever the current tick sits.
// It reports whether the tick flipped between initialized and uninitialized.
func (tt Table) Update(
	tick, tickCurrent int32,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
	upper bool,
	maxLiquidity *big.Int,
) (flipped bool, err error) {
	info, ok := tt[tick]
	if !ok {
		info = newTick()
	}

	liquidityGrossBefore := info.LiquidityGross
	liquidityGrossAfter := new(big.Int)
	if err := liquiditymath.AddDelta(liquidityGrossAfter, liquidityGrossBefore, liquidityDelta); err != nil {
		return false, err
	}
	if liquidityGrossAfter.Cmp(maxLiquidity) > 0 {
		return false, ErrLiquidityPerTickExceeded
	}

	flipped = (liquidityGrossAfter.Sign() == 0) != (liquidityGrossBefore.Sign() == 0)

	if liquidityGrossBefore.Sign() == 0 {
		// By convention all growth before initialization happened below the
		// tick.
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
			info.SecondsPerLiquidityOutsideX128.Set(secondsPerLiquidityCumulativeX128)
			info.TickCumulativeOutside = tickCumulative
			info.SecondsOutside = time
		}
	}

	info.LiquidityGross = liquidityGrossAfter
	if upper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}

	tt[tick] = info
	return flipped, nil
}

// Cross transitions a tick as the price sweeps through it, inverting every
// "outside" accumulator. It must be called exactly once per traversal and
// returns the net liquidity to apply to the active range.
func (tt Table) Cross(
	tick int32,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
) *big.Int {
	info, ok := tt[tick]
	if !ok {
		return new(big.Int)
	}
	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	info.SecondsPerLiquidityOutsideX128.Sub(secondsPerLiquidityCumulativeX128, info.SecondsPerLiquidityOutsideX128)
	info.TickCumulativeOutside = tickCumulative - info.TickCumulativeOutside
	info.SecondsOutside = time - info.SecondsOutside
	return info.LiquidityNet
}

// GetFeeGrowthInside computes the fee growth inside [lower, upper], per unit
// of liquidity, as global minus the two outside accumulators adjusted by
// which side of the current tick each boundary is on. Subtractions wrap mod
// 2^256; only differences of the results are meaningful.
func (tt Table) GetFeeGrowthInside(
	lower, upper, tickCurrent int32,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
) (feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) {
	lowerTick, lok := tt[lower]
	upperTick, uok := tt[upper]

	feeGrowthBelow0 := new(uint256.Int)
	feeGrowthBelow1 := new(uint256.Int)
	if lok {
		if tickCurrent >= lower {
			feeGrowthBelow0.Set(lowerTick.FeeGrowthOutside0X128)
			feeGrowthBelow1.Set(lowerTick.FeeGrowthOutside1X128)
		} else {
			feeGrowthBelow0.Sub(feeGrowthGlobal0X128, lowerTick.FeeGrowthOutside0X128)
			feeGrowthBelow1.Sub(feeGrowthGlobal1X128, lowerTick.FeeGrowthOutside1X128)
		}
	}

	feeGrowthAbove0 := new(uint256.Int)
	feeGrowthAbove1 := new(uint256.Int)
	if uok {
		if tickCurrent < upper {
			feeGrowthAbove0.Set(upperTick.FeeGrowthOutside0X128)
			feeGrowthAbove1.Set(upperTick.FeeGrowthOutside1X128)
		} else {
			feeGrowthAbove0.Sub(feeGrowthGlobal0X128, upperTick.FeeGrowthOutside0X128)
			feeGrowthAbove1.Sub(feeGrowthGlobal1X128, upperTick.FeeGrowthOutside1X128)
		}
	}

	feeGrowthInside0X128 = new(uint256.Int).Sub(feeGrowthGlobal0X128, feeGrowthBelow0)
	feeGrowthInside0X128.Sub(feeGrowthInside0X128, feeGrowthAbove0)
	feeGrowthInside1X128 = new(uint256.Int).Sub(feeGrowthGlobal1X128, feeGrowthBelow1)
	feeGrowthInside1X128.Sub(feeGrowthInside1X128, feeGrowthAbove1)
	return feeGrowthInside0X128, feeGrowthInside1X128
}

// Clear removes a tick entry once nothing references it.
func (tt Table) Clear(tick int32) {
	delete(tt, tick)
}
