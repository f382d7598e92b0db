package ticktable

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	zeroU256     = new(uint256.Int)
	maxLiquidity = func() *big.Int {
		n, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10) // 2^128 - 1
		return n
	}()
)

func update(t *testing.T, tt Table, tick, tickCurrent int32, delta int64, upper bool) bool {
	t.Helper()
	flipped, err := tt.Update(tick, tickCurrent, big.NewInt(delta), zeroU256, zeroU256, zeroU256, 0, 0, upper, maxLiquidity)
	require.NoError(t, err)
	return flipped
}

func TestUpdate_Flipping(t *testing.T) {
	t.Run("flips from zero to nonzero", func(t *testing.T) {
		tt := New()
		assert.True(t, update(t, tt, 0, 0, 1, false))
	})

	t.Run("does not flip from nonzero to greater nonzero", func(t *testing.T) {
		tt := New()
		update(t, tt, 0, 0, 1, false)
		assert.False(t, update(t, tt, 0, 0, 1, false))
	})

	t.Run("flips from nonzero to zero", func(t *testing.T) {
		tt := New()
		update(t, tt, 0, 0, 1, false)
		assert.True(t, update(t, tt, 0, 0, -1, false))
	})

	t.Run("does not flip when other liquidity remains", func(t *testing.T) {
		tt := New()
		update(t, tt, 0, 0, 2, false)
		assert.False(t, update(t, tt, 0, 0, -1, false))
	})
}

func TestUpdate_LiquidityCap(t *testing.T) {
	tt := New()
	cap := big.NewInt(3)
	_, err := tt.Update(0, 0, big.NewInt(2), zeroU256, zeroU256, zeroU256, 0, 0, false, cap)
	require.NoError(t, err)
	_, err = tt.Update(0, 0, big.NewInt(1), zeroU256, zeroU256, zeroU256, 0, 0, true, cap)
	require.NoError(t, err)
	_, err = tt.Update(0, 0, big.NewInt(1), zeroU256, zeroU256, zeroU256, 0, 0, false, cap)
	assert.ErrorIs(t, err, ErrLiquidityPerTickExceeded)
}

func TestUpdate_LiquidityNet(t *testing.T) {
	t.Run("nets out lower and upper of same delta", func(t *testing.T) {
		tt := New()
		update(t, tt, 2, 0, 3, false)
		update(t, tt, 2, 0, 3, true)
		info := tt.Get(2)
		require.NotNil(t, info)
		assert.Zero(t, info.LiquidityGross.Cmp(big.NewInt(6)))
		assert.Zero(t, info.LiquidityNet.Sign())
	})

	t.Run("accumulates signed net", func(t *testing.T) {
		tt := New()
		update(t, tt, 2, 0, 2, false)
		update(t, tt, 2, 0, 1, true)
		update(t, tt, 2, 0, 3, true)
		info := tt.Get(2)
		require.NotNil(t, info)
		assert.Zero(t, info.LiquidityGross.Cmp(big.NewInt(6)))
		assert.Zero(t, info.LiquidityNet.Cmp(big.NewInt(-2)))
	})
}

func TestUpdate_OutsideSnapshot(t *testing.T) {
	t.Run("tick at or below current snapshots globals", func(t *testing.T) {
		tt := New()
		fg0 := uint256.NewInt(100)
		fg1 := uint256.NewInt(200)
		spl := uint256.NewInt(7)
		_, err := tt.Update(1, 1, big.NewInt(1), fg0, fg1, spl, 42, 9, false, maxLiquidity)
		require.NoError(t, err)

		info := tt.Get(1)
		require.NotNil(t, info)
		assert.Zero(t, info.FeeGrowthOutside0X128.Cmp(fg0))
		assert.Zero(t, info.FeeGrowthOutside1X128.Cmp(fg1))
		assert.Zero(t, info.SecondsPerLiquidityOutsideX128.Cmp(spl))
		assert.Equal(t, int64(42), info.TickCumulativeOutside)
		assert.Equal(t, uint32(9), info.SecondsOutside)
	})

	t.Run("tick above current starts at zero", func(t *testing.T) {
		tt := New()
		_, err := tt.Update(2, 1, big.NewInt(1), uint256.NewInt(100), uint256.NewInt(200), uint256.NewInt(7), 42, 9, false, maxLiquidity)
		require.NoError(t, err)

		info := tt.Get(2)
		require.NotNil(t, info)
		assert.True(t, info.FeeGrowthOutside0X128.IsZero())
		assert.True(t, info.FeeGrowthOutside1X128.IsZero())
		assert.Zero(t, info.TickCumulativeOutside)
	})

	t.Run("snapshot only on first initialization", func(t *testing.T) {
		tt := New()
		_, err := tt.Update(1, 1, big.NewInt(1), uint256.NewInt(100), uint256.NewInt(200), zeroU256, 0, 0, false, maxLiquidity)
		require.NoError(t, err)
		_, err = tt.Update(1, 1, big.NewInt(1), uint256.NewInt(999), uint256.NewInt(999), zeroU256, 0, 0, false, maxLiquidity)
		require.NoError(t, err)

		info := tt.Get(1)
		assert.Zero(t, info.FeeGrowthOutside0X128.Cmp(uint256.NewInt(100)))
		assert.Zero(t, info.FeeGrowthOutside1X128.Cmp(uint256.NewInt(200)))
	})
}

func TestCross(t *testing.T) {
	t.Run("flips outside accumulators", func(t *testing.T) {
		tt := New()
		tt[2] = &Tick{
			LiquidityGross:                 big.NewInt(3),
			LiquidityNet:                   big.NewInt(4),
			FeeGrowthOutside0X128:          uint256.NewInt(1),
			FeeGrowthOutside1X128:          uint256.NewInt(2),
			TickCumulativeOutside:          6,
			SecondsPerLiquidityOutsideX128: uint256.NewInt(5),
			SecondsOutside:                 7,
		}

		net := tt.Cross(2, uint256.NewInt(7), uint256.NewInt(9), uint256.NewInt(8), 15, 10)
		assert.Zero(t, net.Cmp(big.NewInt(4)))

		info := tt.Get(2)
		assert.Zero(t, info.FeeGrowthOutside0X128.Cmp(uint256.NewInt(6)))
		assert.Zero(t, info.FeeGrowthOutside1X128.Cmp(uint256.NewInt(7)))
		assert.Zero(t, info.SecondsPerLiquidityOutsideX128.Cmp(uint256.NewInt(3)))
		assert.Equal(t, int64(9), info.TickCumulativeOutside)
		assert.Equal(t, uint32(3), info.SecondsOutside)
	})

	t.Run("two crossings restore the original values", func(t *testing.T) {
		tt := New()
		tt[2] = &Tick{
			LiquidityGross:                 big.NewInt(3),
			LiquidityNet:                   big.NewInt(4),
			FeeGrowthOutside0X128:          uint256.NewInt(1),
			FeeGrowthOutside1X128:          uint256.NewInt(2),
			TickCumulativeOutside:          6,
			SecondsPerLiquidityOutsideX128: uint256.NewInt(5),
			SecondsOutside:                 7,
		}

		tt.Cross(2, uint256.NewInt(7), uint256.NewInt(9), uint256.NewInt(8), 15, 10)
		tt.Cross(2, uint256.NewInt(7), uint256.NewInt(9), uint256.NewInt(8), 15, 10)

		info := tt.Get(2)
		assert.Zero(t, info.FeeGrowthOutside0X128.Cmp(uint256.NewInt(1)))
		assert.Zero(t, info.FeeGrowthOutside1X128.Cmp(uint256.NewInt(2)))
		assert.Equal(t, int64(6), info.TickCumulativeOutside)
		assert.Equal(t, uint32(7), info.SecondsOutside)
	})

	t.Run("uninitialized tick contributes no net liquidity", func(t *testing.T) {
		tt := New()
		net := tt.Cross(5, zeroU256, zeroU256, zeroU256, 0, 0)
		assert.Zero(t, net.Sign())
	})
}

func TestGetFeeGrowthInside(t *testing.T) {
	fg := func(n uint64) *uint256.Int { return uint256.NewInt(n) }

	t.Run("all growth is inside for uninitialized boundaries", func(t *testing.T) {
		tt := New()
		in0, in1 := tt.GetFeeGrowthInside(-2, 2, 0, fg(15), fg(15))
		assert.Zero(t, in0.Cmp(fg(15)))
		assert.Zero(t, in1.Cmp(fg(15)))
	})

	t.Run("subtracts growth above the upper tick", func(t *testing.T) {
		tt := New()
		_, err := tt.Update(2, 3, big.NewInt(1), fg(2), fg(3), zeroU256, 0, 0, true, maxLiquidity)
		require.NoError(t, err)

		// current tick 0 is below upper 2, so outside-above is the raw snapshot
		in0, in1 := tt.GetFeeGrowthInside(-2, 2, 0, fg(15), fg(15))
		assert.Zero(t, in0.Cmp(fg(13)))
		assert.Zero(t, in1.Cmp(fg(12)))
	})

	t.Run("subtracts growth below the lower tick", func(t *testing.T) {
		tt := New()
		_, err := tt.Update(-2, 0, big.NewInt(1), fg(2), fg(3), zeroU256, 0, 0, false, maxLiquidity)
		require.NoError(t, err)

		in0, in1 := tt.GetFeeGrowthInside(-2, 2, 0, fg(15), fg(15))
		assert.Zero(t, in0.Cmp(fg(13)))
		assert.Zero(t, in1.Cmp(fg(12)))
	})

	t.Run("wraps when outside exceeds global", func(t *testing.T) {
		tt := New()
		maxU := new(uint256.Int).Not(zeroU256) // 2^256 - 1
		_, err := tt.Update(-2, 0, big.NewInt(1), new(uint256.Int).Sub(maxU, fg(2)), new(uint256.Int).Sub(maxU, fg(1)), zeroU256, 0, 0, false, maxLiquidity)
		require.NoError(t, err)
		_, err = tt.Update(2, 0, big.NewInt(1), zeroU256, zeroU256, zeroU256, 0, 0, true, maxLiquidity)
		require.NoError(t, err)

		// global lapped the lower snapshot; the difference is still exact mod 2^256
		in0, in1 := tt.GetFeeGrowthInside(-2, 2, 0, fg(15), fg(15))
		assert.Zero(t, in0.Cmp(fg(18)))
		assert.Zero(t, in1.Cmp(fg(17)))
	})
}

func TestClearAndClone(t *testing.T) {
	tt := New()
	update(t, tt, 2, 0, 3, false)
	require.NotNil(t, tt.Get(2))

	c := tt.Clone()
	tt.Clear(2)
	assert.Nil(t, tt.Get(2))
	require.NotNil(t, c.Get(2))
	assert.Zero(t, c.Get(2).LiquidityGross.Cmp(big.NewInt(3)))
}
