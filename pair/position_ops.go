package pair

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-pair-go/calculator/liquiditymath"
	"github.com/defistate/defistate-pair-go/calculator/sqrtpricemath"
	"github.com/defistate/defistate-pair-go/calculator/tickmath"
	"github.com/defistate/defistate-pair-go/positions"
)

// maxMintAmount bounds a single mint so liquidity deltas stay within the
// signed 128-bit range.
var maxMintAmount = new(big.Int).Lsh(big.NewInt(1), 127)

func (p *Pair) checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return ErrTickOrder
	}
	if tickLower < tickmath.MinTick {
		return ErrTickLowerTooSmall
	}
	if tickUpper > tickmath.MaxTick {
		return ErrTickUpperTooLarge
	}
	return nil
}

// Mint adds liquidity to a position and collects the owed token amounts
// through the callback. The position owner is the recipient.
func (p *Pair) Mint(recipient common.Address, tickLower, tickUpper int32, amount *big.Int, data []byte, cb MintCallback) (amount0, amount1 *big.Int, err error) {
	err = p.locked("mint", func() error {
		if amount.Sign() <= 0 {
			return errors.New("mint amount must be positive")
		}
		if amount.Cmp(maxMintAmount) >= 0 {
			return ErrAmountTooLarge
		}

		_, a0, a1, err := p.modifyPosition(recipient, tickLower, tickUpper, amount)
		if err != nil {
			return err
		}
		amount0, amount1 = a0, a1

		var balance0Before, balance1Before *big.Int
		if amount0.Sign() > 0 {
			balance0Before = p.token0.BalanceOf(p.address)
		}
		if amount1.Sign() > 0 {
			balance1Before = p.token1.BalanceOf(p.address)
		}

		if err := cb(new(big.Int).Set(amount0), new(big.Int).Set(amount1), data); err != nil {
			return err
		}

		if amount0.Sign() > 0 {
			owed := new(big.Int).Add(balance0Before, amount0)
			if p.token0.BalanceOf(p.address).Cmp(owed) < 0 {
				return ErrMintUnderpaid0
			}
		}
		if amount1.Sign() > 0 {
			owed := new(big.Int).Add(balance1Before, amount1)
			if p.token1.BalanceOf(p.address).Cmp(owed) < 0 {
				return ErrMintUnderpaid1
			}
		}

		p.logger.Info("mint",
			"owner", recipient.Hex(), "tick_lower", tickLower, "tick_upper", tickUpper,
			"liquidity", amount.String(), "amount0", amount0.String(), "amount1", amount1.String())
		p.emit(MintEvent{
			Owner: recipient, TickLower: tickLower, TickUpper: tickUpper,
			Amount: new(big.Int).Set(amount), Amount0: amount0, Amount1: amount1,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn removes liquidity from the caller's position. The freed token amounts
// are credited to tokensOwed for a later Collect; nothing is transferred. A
// zero amount is a poke that refreshes fee accounting.
func (p *Pair) Burn(owner common.Address, tickLower, tickUpper int32, amount *big.Int) (amount0, amount1 *big.Int, err error) {
	err = p.locked("burn", func() error {
		if amount.Sign() < 0 {
			return errors.New("burn amount must not be negative")
		}

		position, a0, a1, err := p.modifyPosition(owner, tickLower, tickUpper, new(big.Int).Neg(amount))
		if err != nil {
			return err
		}
		amount0 = new(big.Int).Neg(a0)
		amount1 = new(big.Int).Neg(a1)

		if amount0.Sign() > 0 || amount1.Sign() > 0 {
			position.TokensOwed0.Add(position.TokensOwed0, amount0)
			position.TokensOwed1.Add(position.TokensOwed1, amount1)
		}

		p.logger.Info("burn",
			"owner", owner.Hex(), "tick_lower", tickLower, "tick_upper", tickUpper,
			"liquidity", amount.String(), "amount0", amount0.String(), "amount1", amount1.String())
		p.emit(BurnEvent{
			Owner: owner, TickLower: tickLower, TickUpper: tickUpper,
			Amount: new(big.Int).Set(amount), Amount0: amount0, Amount1: amount1,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect transfers owed tokens out of a position, capped by the requests.
func (p *Pair) Collect(owner, recipient common.Address, tickLower, tickUpper int32, amount0Requested, amount1Requested *big.Int) (amount0, amount1 *big.Int, err error) {
	err = p.locked("collect", func() error {
		position := p.positions.Get(positions.Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper})
		if position == nil {
			amount0, amount1 = new(big.Int), new(big.Int)
			return nil
		}

		amount0, amount1 = position.Collect(amount0Requested, amount1Requested)

		if amount0.Sign() > 0 {
			if err := p.token0.Transfer(p.address, recipient, amount0); err != nil {
				return err
			}
		}
		if amount1.Sign() > 0 {
			if err := p.token1.Transfer(p.address, recipient, amount1); err != nil {
				return err
			}
		}

		p.emit(CollectEvent{
			Owner: owner, Recipient: recipient, TickLower: tickLower, TickUpper: tickUpper,
			Amount0: amount0, Amount1: amount1,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// modifyPosition applies a signed liquidity delta to a position and computes
// the signed token amounts it implies given where the current price sits
// relative to the range. Positive amounts are owed to the pair, negative are
// owed to the position.
func (p *Pair) modifyPosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta *big.Int) (position *positions.Position, amount0, amount1 *big.Int, err error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, nil, err
	}

	position, err = p.updatePosition(owner, tickLower, tickUpper, liquidityDelta, p.slot0.Tick)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0, amount1 = new(big.Int), new(big.Int)
	if liquidityDelta.Sign() == 0 {
		return position, amount0, amount1, nil
	}

	sqrtRatioLower, sqrtRatioUpper := new(big.Int), new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtRatioLower, tickLower); err != nil {
		return nil, nil, nil, err
	}
	if err := tickmath.GetSqrtRatioAtTick(sqrtRatioUpper, tickUpper); err != nil {
		return nil, nil, nil, err
	}

	switch {
	case p.slot0.Tick < tickLower:
		// Entirely above the price: the position needs only token0.
		if err := amount0DeltaSigned(amount0, sqrtRatioLower, sqrtRatioUpper, liquidityDelta); err != nil {
			return nil, nil, nil, err
		}

	case p.slot0.Tick < tickUpper:
		// In range: the active liquidity changes, which is an observable
		// datapoint for the oracle.
		p.slot0.ObservationIndex, p.slot0.ObservationCardinality = p.observations.Write(
			p.slot0.ObservationIndex, p.now(), p.slot0.Tick, p.liquidity,
			p.slot0.ObservationCardinality, p.slot0.ObservationCardinalityNext)

		if err := amount0DeltaSigned(amount0, p.slot0.SqrtPriceX96, sqrtRatioUpper, liquidityDelta); err != nil {
			return nil, nil, nil, err
		}
		amount1DeltaSigned(amount1, sqrtRatioLower, p.slot0.SqrtPriceX96, liquidityDelta)

		liquidityAfter := new(big.Int)
		if err := liquiditymath.AddDelta(liquidityAfter, p.liquidity, liquidityDelta); err != nil {
			return nil, nil, nil, err
		}
		p.liquidity = liquidityAfter

	default:
		// Entirely below the price: only token1.
		amount1DeltaSigned(amount1, sqrtRatioLower, sqrtRatioUpper, liquidityDelta)
	}

	return position, amount0, amount1, nil
}

// updatePosition maintains the tick table, bitmap and the position itself for
// one liquidity change.
func (p *Pair) updatePosition(owner common.Address, tickLower, tickUpper int32, liquidityDelta *big.Int, tick int32) (*positions.Position, error) {
	key := positions.Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}

	var flippedLower, flippedUpper bool
	if liquidityDelta.Sign() != 0 {
		time := p.now()
		tickCumulative, secondsPerLiquidityCumulativeX128, err := p.observations.ObserveSingle(
			time, 0, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
		if err != nil {
			return nil, err
		}

		flippedLower, err = p.ticks.Update(tickLower, tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
			secondsPerLiquidityCumulativeX128, tickCumulative, time, false, p.maxLiquidityPerTick)
		if err != nil {
			return nil, mapLiquidityErr(err)
		}
		flippedUpper, err = p.ticks.Update(tickUpper, tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
			secondsPerLiquidityCumulativeX128, tickCumulative, time, true, p.maxLiquidityPerTick)
		if err != nil {
			return nil, mapLiquidityErr(err)
		}

		if flippedLower {
			if err := p.bitmap.FlipTick(tickLower, p.tickSpacing); err != nil {
				return nil, err
			}
		}
		if flippedUpper {
			if err := p.bitmap.FlipTick(tickUpper, p.tickSpacing); err != nil {
				return nil, err
			}
		}
	}

	feeGrowthInside0X128, feeGrowthInside1X128 := p.ticks.GetFeeGrowthInside(
		tickLower, tickUpper, tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)

	position, err := p.positions.Update(key, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128)
	if err != nil {
		return nil, mapLiquidityErr(err)
	}

	// A removal that empties a tick also clears its bookkeeping.
	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}
	return position, nil
}

func mapLiquidityErr(err error) error {
	if errors.Is(err, liquiditymath.ErrLiquidityUnderflow) {
		return ErrCannotRemove
	}
	return err
}

// amount0DeltaSigned writes the token0 amount implied by a signed liquidity
// delta between two prices: rounding always favors the pair.
func amount0DeltaSigned(dest, sqrtRatioAX96, sqrtRatioBX96, liquidityDelta *big.Int) error {
	if liquidityDelta.Sign() < 0 {
		abs := new(big.Int).Neg(liquidityDelta)
		if err := sqrtpricemath.GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, abs, false); err != nil {
			return err
		}
		dest.Neg(dest)
		return nil
	}
	return sqrtpricemath.GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidityDelta, true)
}

func amount1DeltaSigned(dest, sqrtRatioAX96, sqrtRatioBX96, liquidityDelta *big.Int) {
	if liquidityDelta.Sign() < 0 {
		abs := new(big.Int).Neg(liquidityDelta)
		sqrtpricemath.GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, abs, false)
		dest.Neg(dest)
		return
	}
	sqrtpricemath.GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidityDelta, true)
}
