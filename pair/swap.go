package pair

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/defistate-pair-go/calculator/fullmath"
	"github.com/defistate/defistate-pair-go/calculator/liquiditymath"
	"github.com/defistate/defistate-pair-go/calculator/swapmath"
	"github.com/defistate/defistate-pair-go/calculator/tickmath"
)

// swapCache holds values fixed for the whole swap, plus the accumulator
// snapshot computed lazily at the first tick crossing.
type swapCache struct {
	liquidityStart *big.Int
	blockTimestamp uint32
	feeProtocol    uint8

	secondsPerLiquidityCumulativeX128 *uint256.Int
	tickCumulative                    int64
	computedLatestObservation         bool
}

// swapState is the running state of the swap loop.
type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int32
	feeGrowthGlobalX128      *uint256.Int
	protocolFee              *big.Int
	liquidity                *big.Int
}

// stepComputations is the per-step scratch.
type stepComputations struct {
	sqrtPriceStartX96 *big.Int
	tickNext          int32
	initialized       bool
	sqrtPriceNextX96  *big.Int
	amountIn          *big.Int
	amountOut         *big.Int
	feeAmount         *big.Int
}

// Swap trades one token for the other. A positive amountSpecified is exact
// input, negative exact output. The price moves toward sqrtPriceLimitX96 and
// stops there if the amount is not exhausted first. Output is transferred to
// the recipient before the callback collects the input.
func (p *Pair) Swap(
	recipient common.Address,
	zeroForOne bool,
	amountSpecified *big.Int,
	sqrtPriceLimitX96 *big.Int,
	data []byte,
	cb SwapCallback,
) (amount0, amount1 *big.Int, err error) {
	err = p.locked("swap", func() error {
		defer timeOp(p.metrics.swapDuration)()

		if amountSpecified.Sign() == 0 {
			return ErrAmountSpecified
		}

		slot0Start := p.slot0
		if zeroForOne {
			if sqrtPriceLimitX96.Cmp(slot0Start.SqrtPriceX96) >= 0 || sqrtPriceLimitX96.Cmp(tickmath.MinSqrtRatio) <= 0 {
				return ErrPriceLimit
			}
		} else {
			if sqrtPriceLimitX96.Cmp(slot0Start.SqrtPriceX96) <= 0 || sqrtPriceLimitX96.Cmp(tickmath.MaxSqrtRatio) >= 0 {
				return ErrPriceLimit
			}
		}

		cache := swapCache{
			liquidityStart: new(big.Int).Set(p.liquidity),
			blockTimestamp: p.now(),
			feeProtocol:    slot0Start.FeeProtocol,
		}
		exactInput := amountSpecified.Sign() > 0

		state := swapState{
			amountSpecifiedRemaining: new(big.Int).Set(amountSpecified),
			amountCalculated:         new(big.Int),
			sqrtPriceX96:             new(big.Int).Set(slot0Start.SqrtPriceX96),
			tick:                     slot0Start.Tick,
			protocolFee:              new(big.Int),
			liquidity:                new(big.Int).Set(cache.liquidityStart),
		}
		if zeroForOne {
			state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.feeGrowthGlobal0X128)
		} else {
			state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.feeGrowthGlobal1X128)
		}

		step := stepComputations{
			sqrtPriceStartX96: new(big.Int),
			sqrtPriceNextX96:  new(big.Int),
			amountIn:          new(big.Int),
			amountOut:         new(big.Int),
			feeAmount:         new(big.Int),
		}
		sqrtPriceTarget := new(big.Int)

		for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimitX96) != 0 {
			step.sqrtPriceStartX96.Set(state.sqrtPriceX96)

			step.tickNext, step.initialized = p.bitmap.NextInitializedTickWithinOneWord(state.tick, p.tickSpacing, zeroForOne)
			// The bitmap walk may run past the usable range in either
			// direction; the boundary ticks are hard stops.
			if step.tickNext < tickmath.MinTick {
				step.tickNext = tickmath.MinTick
			} else if step.tickNext > tickmath.MaxTick {
				step.tickNext = tickmath.MaxTick
			}

			if err := tickmath.GetSqrtRatioAtTick(step.sqrtPriceNextX96, step.tickNext); err != nil {
				return ErrTickBound
			}

			// The step may not move past the caller's limit.
			if zeroForOne {
				if step.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0 {
					sqrtPriceTarget.Set(sqrtPriceLimitX96)
				} else {
					sqrtPriceTarget.Set(step.sqrtPriceNextX96)
				}
			} else {
				if step.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0 {
					sqrtPriceTarget.Set(sqrtPriceLimitX96)
				} else {
					sqrtPriceTarget.Set(step.sqrtPriceNextX96)
				}
			}

			if err := swapmath.ComputeSwapStep(
				state.sqrtPriceX96, step.amountIn, step.amountOut, step.feeAmount,
				step.sqrtPriceStartX96, sqrtPriceTarget, state.liquidity,
				state.amountSpecifiedRemaining, uint64(p.fee),
			); err != nil {
				return err
			}

			if exactInput {
				consumed := new(big.Int).Add(step.amountIn, step.feeAmount)
				state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, consumed)
				state.amountCalculated.Sub(state.amountCalculated, step.amountOut)
			} else {
				state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, step.amountOut)
				received := new(big.Int).Add(step.amountIn, step.feeAmount)
				state.amountCalculated.Add(state.amountCalculated, received)
			}

			// Protocol cut comes off the top of the step fee.
			if cache.feeProtocol > 0 {
				delta := new(big.Int).Div(step.feeAmount, big.NewInt(int64(cache.feeProtocol)))
				step.feeAmount.Sub(step.feeAmount, delta)
				state.protocolFee.Add(state.protocolFee, delta)
			}

			// Remaining fee feeds the global per-liquidity accumulator; gap
			// regions with no liquidity accrue nothing.
			if state.liquidity.Sign() > 0 {
				feeU, _ := uint256.FromBig(step.feeAmount)
				liqU, _ := uint256.FromBig(state.liquidity)
				growth := new(uint256.Int)
				if err := fullmath.MulDiv(growth, feeU, fullmath.Q128, liqU); err != nil {
					return err
				}
				state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
			}

			if state.sqrtPriceX96.Cmp(step.sqrtPriceNextX96) == 0 {
				// Reached the next tick boundary.
				if step.initialized {
					// The accumulator snapshot is computed once, at the first
					// crossing of the swap, from pre-swap state.
					if !cache.computedLatestObservation {
						var err error
						cache.tickCumulative, cache.secondsPerLiquidityCumulativeX128, err = p.observations.ObserveSingle(
							cache.blockTimestamp, 0, slot0Start.Tick, slot0Start.ObservationIndex,
							cache.liquidityStart, slot0Start.ObservationCardinality)
						if err != nil {
							return err
						}
						cache.computedLatestObservation = true
					}

					var liquidityNet *big.Int
					if zeroForOne {
						liquidityNet = p.ticks.Cross(step.tickNext,
							state.feeGrowthGlobalX128, p.feeGrowthGlobal1X128,
							cache.secondsPerLiquidityCumulativeX128, cache.tickCumulative, cache.blockTimestamp)
						liquidityNet = new(big.Int).Neg(liquidityNet)
					} else {
						liquidityNet = p.ticks.Cross(step.tickNext,
							p.feeGrowthGlobal0X128, state.feeGrowthGlobalX128,
							cache.secondsPerLiquidityCumulativeX128, cache.tickCumulative, cache.blockTimestamp)
					}

					liquidityAfter := new(big.Int)
					if err := liquiditymath.AddDelta(liquidityAfter, state.liquidity, liquidityNet); err != nil {
						return err
					}
					state.liquidity = liquidityAfter
					p.metrics.ticksCrossed.Inc()
				}

				if zeroForOne {
					state.tick = step.tickNext - 1
				} else {
					state.tick = step.tickNext
				}
			} else if state.sqrtPriceX96.Cmp(step.sqrtPriceStartX96) != 0 {
				// Moved within the segment; recompute the tick from the price.
				tick, err := tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
				if err != nil {
					return ErrTickBound
				}
				state.tick = tick
			}
		}

		// Exactly one oracle write per swap that moved the tick, stamped with
		// the pre-swap tick and liquidity.
		if state.tick != slot0Start.Tick {
			p.slot0.ObservationIndex, p.slot0.ObservationCardinality = p.observations.Write(
				slot0Start.ObservationIndex, cache.blockTimestamp, slot0Start.Tick,
				cache.liquidityStart, slot0Start.ObservationCardinality, slot0Start.ObservationCardinalityNext)
			p.slot0.Tick = state.tick
		}
		p.slot0.SqrtPriceX96 = state.sqrtPriceX96

		if state.liquidity.Cmp(cache.liquidityStart) != 0 {
			p.liquidity = state.liquidity
		}

		if zeroForOne {
			p.feeGrowthGlobal0X128 = state.feeGrowthGlobalX128
			if state.protocolFee.Sign() > 0 {
				p.protocolFees0.Add(p.protocolFees0, state.protocolFee)
			}
		} else {
			p.feeGrowthGlobal1X128 = state.feeGrowthGlobalX128
			if state.protocolFee.Sign() > 0 {
				p.protocolFees1.Add(p.protocolFees1, state.protocolFee)
			}
		}

		consumed := new(big.Int).Sub(amountSpecified, state.amountSpecifiedRemaining)
		if zeroForOne == exactInput {
			amount0, amount1 = consumed, state.amountCalculated
		} else {
			amount0, amount1 = state.amountCalculated, consumed
		}

		// Pay out, then collect the input through the callback and verify it
		// arrived.
		if zeroForOne {
			if amount1.Sign() < 0 {
				if err := p.token1.Transfer(p.address, recipient, new(big.Int).Neg(amount1)); err != nil {
					return err
				}
			}
			balance0Before := p.token0.BalanceOf(p.address)
			if err := cb(new(big.Int).Set(amount0), new(big.Int).Set(amount1), data); err != nil {
				return err
			}
			owed := new(big.Int).Add(balance0Before, amount0)
			if p.token0.BalanceOf(p.address).Cmp(owed) < 0 {
				return ErrSwapUnderpaid
			}
		} else {
			if amount0.Sign() < 0 {
				if err := p.token0.Transfer(p.address, recipient, new(big.Int).Neg(amount0)); err != nil {
					return err
				}
			}
			balance1Before := p.token1.BalanceOf(p.address)
			if err := cb(new(big.Int).Set(amount0), new(big.Int).Set(amount1), data); err != nil {
				return err
			}
			owed := new(big.Int).Add(balance1Before, amount1)
			if p.token1.BalanceOf(p.address).Cmp(owed) < 0 {
				return ErrSwapUnderpaid
			}
		}

		p.logger.Info("swap",
			"recipient", recipient.Hex(), "zero_for_one", zeroForOne,
			"amount0", amount0.String(), "amount1", amount1.String(),
			"sqrt_price_x96", state.sqrtPriceX96.String(), "tick", state.tick,
			"liquidity", state.liquidity.String())
		p.emit(SwapEvent{
			Recipient: recipient, Amount0: amount0, Amount1: amount1,
			SqrtPriceX96: new(big.Int).Set(state.sqrtPriceX96),
			Liquidity:    new(big.Int).Set(state.liquidity), Tick: state.tick,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Flash lends out both tokens for the duration of the callback. Repayment
// plus the swap fee is verified by balance deltas; the fee accrues to
// in-range liquidity with the usual protocol split.
func (p *Pair) Flash(recipient common.Address, amount0, amount1 *big.Int, data []byte, cb FlashCallback) error {
	return p.locked("flash", func() error {
		if p.liquidity.Sign() <= 0 {
			return ErrFlashNoLiquidity
		}

		feePips := big.NewInt(int64(p.fee))
		fee0 := mulDivRoundingUpBig(amount0, feePips, big.NewInt(1_000_000))
		fee1 := mulDivRoundingUpBig(amount1, feePips, big.NewInt(1_000_000))

		balance0Before := p.token0.BalanceOf(p.address)
		balance1Before := p.token1.BalanceOf(p.address)

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

		if err := cb(fee0, fee1, data); err != nil {
			return err
		}

		balance0After := p.token0.BalanceOf(p.address)
		balance1After := p.token1.BalanceOf(p.address)

		if new(big.Int).Add(balance0Before, fee0).Cmp(balance0After) > 0 {
			return ErrFlashUnderpaid0
		}
		if new(big.Int).Add(balance1Before, fee1).Cmp(balance1After) > 0 {
			return ErrFlashUnderpaid1
		}

		paid0 := new(big.Int).Sub(balance0After, balance0Before)
		paid1 := new(big.Int).Sub(balance1After, balance1Before)

		if paid0.Sign() > 0 {
			p.accrueFlashFee(paid0, true)
		}
		if paid1.Sign() > 0 {
			p.accrueFlashFee(paid1, false)
		}

		p.emit(FlashEvent{Recipient: recipient, Amount0: amount0, Amount1: amount1, Paid0: paid0, Paid1: paid1})
		return nil
	})
}

// accrueFlashFee splits a paid flash fee between the protocol and the global
// fee growth of the given token.
func (p *Pair) accrueFlashFee(paid *big.Int, token0 bool) {
	feeProtocol := p.slot0.FeeProtocol
	protocolPortion := new(big.Int)
	if feeProtocol > 0 {
		protocolPortion.Div(paid, big.NewInt(int64(feeProtocol)))
	}
	remainder := new(big.Int).Sub(paid, protocolPortion)

	remU, _ := uint256.FromBig(remainder)
	liqU, _ := uint256.FromBig(p.liquidity)
	growth := new(uint256.Int)
	// Liquidity is positive here, so this cannot fail for token amounts that
	// fit in 128 bits.
	_ = fullmath.MulDiv(growth, remU, fullmath.Q128, liqU)

	if token0 {
		if protocolPortion.Sign() > 0 {
			p.protocolFees0.Add(p.protocolFees0, protocolPortion)
		}
		p.feeGrowthGlobal0X128.Add(p.feeGrowthGlobal0X128, growth)
	} else {
		if protocolPortion.Sign() > 0 {
			p.protocolFees1.Add(p.protocolFees1, protocolPortion)
		}
		p.feeGrowthGlobal1X128.Add(p.feeGrowthGlobal1X128, growth)
	}
}

func mulDivRoundingUpBig(a, b, c *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	dest, rem := new(big.Int).DivMod(product, c, new(big.Int))
	if rem.Sign() > 0 {
		dest.Add(dest, big.NewInt(1))
	}
	return dest
}
