package pair

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromString(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

func TestSwap_Validation(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	t.Run("zero amount", func(t *testing.T) {
		_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(0), encodePriceSqrt(99, 100), nil, e.swapCb())
		assert.ErrorIs(t, err, ErrAmountSpecified)
	})

	t.Run("limit on wrong side", func(t *testing.T) {
		// selling token0 moves the price down; a limit above spot is invalid
		_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1000), encodePriceSqrt(101, 100), nil, e.swapCb())
		assert.ErrorIs(t, err, ErrPriceLimit)

		_, _, err = e.pair.Swap(walletAddr, false, big.NewInt(1000), encodePriceSqrt(99, 100), nil, e.swapCb())
		assert.ErrorIs(t, err, ErrPriceLimit)
	})

	t.Run("limit outside representable range", func(t *testing.T) {
		_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1000), big.NewInt(4295128739), nil, e.swapCb())
		assert.ErrorIs(t, err, ErrPriceLimit)
	})
}

func TestSwap_ExactInNoCross(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(1))

	amountIn := big.NewInt(1_000_000_000_000_000) // 10^15
	a0, a1, err := e.pair.Swap(walletAddr, true, amountIn, encodePriceSqrt(50, 100), nil, e.swapCb())
	require.NoError(t, err)

	// the full input is consumed; the output follows from fee then price move
	assert.Zero(t, a0.Cmp(amountIn))
	assert.Zero(t, a1.Cmp(fromString("-996006981039903")))

	s := e.pair.CurrentSlot0()
	assert.True(t, s.SqrtPriceX96.Cmp(encodePriceSqrt(1, 1)) < 0)
	assert.Equal(t, int32(-20), s.Tick)

	// input-token fee growth accrued, the other side did not move
	fee0, fee1 := e.pair.FeeGrowthGlobal()
	assert.False(t, fee0.IsZero())
	assert.True(t, fee1.IsZero())
}

func TestSwap_TickMovesWithPrice(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1_000_000_000_000_000), encodePriceSqrt(50, 100), nil, e.swapCb())
	require.NoError(t, err)

	// ~0.05% price move at double the liquidity
	assert.Equal(t, int32(-10), e.pair.CurrentSlot0().Tick)
}

func TestSwap_ExactOut(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	want := big.NewInt(1_000_000_000_000_000)
	a0, a1, err := e.pair.Swap(walletAddr, true, new(big.Int).Neg(want), encodePriceSqrt(50, 100), nil, e.swapCb())
	require.NoError(t, err)

	// exactly the requested output, input covers it plus the fee
	assert.Zero(t, a1.Cmp(new(big.Int).Neg(want)))
	assert.True(t, a0.Cmp(want) > 0)
}

func TestSwap_CrossesInitializedTick(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))
	e.mint(walletAddr, -60, 60, expandTo18Decimals(1))

	require.Zero(t, e.pair.Liquidity().Cmp(expandTo18Decimals(3)))

	_, a1, err := e.pair.Swap(walletAddr, true, new(big.Int).Div(expandTo18Decimals(1), big.NewInt(2)), encodePriceSqrt(50, 100), nil, e.swapCb())
	require.NoError(t, err)
	assert.True(t, a1.Sign() < 0)

	// the narrow position dropped out of range at tick -60
	assert.True(t, e.pair.CurrentSlot0().Tick < -60)
	assert.Zero(t, e.pair.Liquidity().Cmp(expandTo18Decimals(2)))

	// the crossing flipped the tick's outside accumulator
	info := e.pair.TickInfo(-60)
	require.NotNil(t, info)
	assert.False(t, info.FeeGrowthOutside0X128.IsZero())
}

func TestSwap_PriceLimitShortCircuit(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	limit := encodePriceSqrt(99, 100)
	amountIn := expandTo18Decimals(1)
	a0, _, err := e.pair.Swap(walletAddr, true, amountIn, limit, nil, e.swapCb())
	require.NoError(t, err)

	// the limit stops the swap with input left over; fee was charged only on
	// the consumed part
	assert.True(t, a0.Cmp(amountIn) < 0)
	assert.True(t, a0.Sign() > 0)
	assert.Zero(t, e.pair.CurrentSlot0().SqrtPriceX96.Cmp(limit))
}

func TestSwap_ProtocolFee(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))
	require.NoError(t, e.pair.SetFeeProtocol(ownerAddr, 6))

	_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1_000_000_000_000_000), encodePriceSqrt(50, 100), nil, e.swapCb())
	require.NoError(t, err)

	fees0, fees1 := e.pair.ProtocolFees()
	assert.True(t, fees0.Sign() > 0)
	assert.Zero(t, fees1.Sign())

	t.Run("collect owner only", func(t *testing.T) {
		_, _, err := e.pair.CollectProtocol(walletAddr, walletAddr, fees0, fees1)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("collect transfers and caps", func(t *testing.T) {
		req := new(big.Int).Add(fees0, big.NewInt(1000))
		got0, got1, err := e.pair.CollectProtocol(ownerAddr, otherAddr, req, big.NewInt(0))
		require.NoError(t, err)
		assert.Zero(t, got0.Cmp(fees0))
		assert.Zero(t, got1.Sign())
		assert.Zero(t, e.token0.BalanceOf(otherAddr).Cmp(fees0))

		left0, _ := e.pair.ProtocolFees()
		assert.Zero(t, left0.Sign())
	})
}

func TestSwap_UnderpaymentRollsBack(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	slotBefore := e.pair.CurrentSlot0()
	deadbeat := func(amount0Delta, amount1Delta *big.Int, _ []byte) error {
		return nil
	}

	_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1_000_000_000), encodePriceSqrt(50, 100), nil, deadbeat)
	assert.ErrorIs(t, err, ErrSwapUnderpaid)

	s := e.pair.CurrentSlot0()
	assert.Zero(t, s.SqrtPriceX96.Cmp(slotBefore.SqrtPriceX96))
	assert.Equal(t, slotBefore.Tick, s.Tick)
	assert.True(t, s.Unlocked)
}

func TestSwap_Reentrancy(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	t.Run("mutating reentry fails locked", func(t *testing.T) {
		reenter := func(amount0Delta, amount1Delta *big.Int, _ []byte) error {
			_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1000), encodePriceSqrt(98, 100), nil, e.swapCb())
			assert.ErrorIs(t, err, ErrLocked)
			// settle the outer swap so only the inner one fails
			return e.swapCb()(amount0Delta, amount1Delta, nil)
		}
		_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1_000_000), encodePriceSqrt(99, 100), nil, reenter)
		require.NoError(t, err)
	})

	t.Run("read paths work during the lock", func(t *testing.T) {
		probe := func(amount0Delta, amount1Delta *big.Int, _ []byte) error {
			assert.Equal(t, int32(60), e.pair.TickSpacing())
			_, _, err := e.pair.Observe([]uint32{0})
			assert.NoError(t, err)
			assert.False(t, e.pair.CurrentSlot0().Unlocked)
			return e.swapCb()(amount0Delta, amount1Delta, nil)
		}
		_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1_000_000), encodePriceSqrt(98, 100), nil, probe)
		require.NoError(t, err)
	})
}

func TestSwap_WritesObservationOnTickChange(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))
	require.NoError(t, e.pair.IncreaseObservationCardinalityNext(2))

	e.clock += 10
	_, _, err := e.pair.Swap(walletAddr, true, big.NewInt(1_000_000_000_000_000), encodePriceSqrt(50, 100), nil, e.swapCb())
	require.NoError(t, err)

	s := e.pair.CurrentSlot0()
	assert.Equal(t, uint16(1), s.ObservationIndex)
	assert.Equal(t, uint16(2), s.ObservationCardinality)

	// the written observation carries the pre-swap tick (0 over 10 seconds)
	tcs, _, err := e.pair.Observe([]uint32{0})
	require.NoError(t, err)
	assert.Equal(t, int64(0), tcs[0])
}

func TestFlash(t *testing.T) {
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, minTick60, maxTick60, expandTo18Decimals(2))

	amount := big.NewInt(1_000_000)
	// fee 0.3% rounded up
	wantFee := big.NewInt(3000)

	t.Run("repaid with fee accrues growth", func(t *testing.T) {
		repay := func(fee0, fee1 *big.Int, _ []byte) error {
			assert.Zero(t, fee0.Cmp(wantFee))
			require.NoError(t, e.token0.Transfer(walletAddr, pairAddr, new(big.Int).Add(amount, fee0)))
			return nil
		}

		balBefore := e.token0.BalanceOf(pairAddr)
		require.NoError(t, e.pair.Flash(walletAddr, amount, big.NewInt(0), nil, repay))
		wantBal := new(big.Int).Add(balBefore, wantFee)
		assert.Zero(t, e.token0.BalanceOf(pairAddr).Cmp(wantBal))

		fee0Growth, _ := e.pair.FeeGrowthGlobal()
		assert.False(t, fee0Growth.IsZero())
	})

	t.Run("underpaid rolls back", func(t *testing.T) {
		skip := func(fee0, fee1 *big.Int, _ []byte) error {
			return e.token0.Transfer(walletAddr, pairAddr, amount) // principal only
		}
		err := e.pair.Flash(walletAddr, amount, big.NewInt(0), nil, skip)
		assert.ErrorIs(t, err, ErrFlashUnderpaid0)
		assert.True(t, e.pair.CurrentSlot0().Unlocked)
	})

	t.Run("requires active liquidity", func(t *testing.T) {
		empty := newEnv(t)
		empty.initialize(encodePriceSqrt(1, 1))
		err := empty.pair.Flash(walletAddr, amount, big.NewInt(0), nil, func(_, _ *big.Int, _ []byte) error { return nil })
		assert.ErrorIs(t, err, ErrFlashNoLiquidity)
	})
}

func TestSwap_GapRegion(t *testing.T) {
	// two disjoint in-range bands with a dead zone between them
	e := newEnv(t)
	e.initialize(encodePriceSqrt(1, 1))
	e.mint(walletAddr, -60, 60, expandTo18Decimals(1))
	e.mint(walletAddr, -600, -480, expandTo18Decimals(1))

	a0, a1, err := e.pair.Swap(walletAddr, true, big.NewInt(10_000_000_000_000_000), encodePriceSqrt(90, 100), nil, e.swapCb())
	require.NoError(t, err)
	assert.True(t, a0.Sign() > 0)
	assert.True(t, a1.Sign() < 0)

	// price ended inside or below the lower band, past the empty stretch
	assert.True(t, e.pair.CurrentSlot0().Tick < -60)
}
