package positions

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/defistate-pair-go/calculator/fullmath"
	"github.com/defistate/defistate-pair-go/calculator/liquiditymath"
)

// ErrNoPosition is returned when a zero-delta poke targets a position that
// holds no liquidity.
var ErrNoPosition = errors.New("NP")

// Key identifies a position by its owner and tick range.
type Key struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
}

// Position tracks one owner's liquidity in one tick range, the fee growth
// inside the range at the last touch, and the fees owed since.
type Position struct {
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:                new(big.Int),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(big.Int),
		TokensOwed1:              new(big.Int),
	}
}

func (p *Position) clone() *Position {
	return &Position{
		Liquidity:                new(big.Int).Set(p.Liquidity),
		FeeGrowthInside0LastX128: new(uint256.Int).Set(p.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: new(uint256.Int).Set(p.FeeGrowthInside1LastX128),
		TokensOwed0:              new(big.Int).Set(p.TokensOwed0),
		TokensOwed1:              new(big.Int).Set(p.TokensOwed1),
	}
}

// Manager indexes positions by key. Entries are created on first update and
// kept for as long as liquidity or owed tokens remain collectible.
type Manager map[Key]*Position

// New returns an empty position manager.
func New() Manager {
	return make(Manager)
}

// Get returns the position for the key, or nil when none exists.
func (m Manager) Get(key Key) *Position {
	return m[key]
}

// Clone returns a deep copy of the manager.
func (m Manager) Clone() Manager {
	c := make(Manager, len(m))
	for k, p := range m {
		c[k] = p.clone()
	}
	return c
}

// Update credits the fees accrued since the last touch and then applies the
// liquidity delta. Fee attribution happens before the delta so the new
// liquidity never earns growth that predates it. A zero delta against an
// empty position is rejected with ErrNoPosition.
func (m Manager) Update(
	key Key,
	liquidityDelta *big.Int,
	feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int,
) (*Position, error) {
	p, ok := m[key]
	if !ok {
		p = newPosition()
	}

	var liquidityNext *big.Int
	if liquidityDelta.Sign() == 0 {
		if p.Liquidity.Sign() == 0 {
			return nil, ErrNoPosition
		}
		liquidityNext = p.Liquidity
	} else {
		liquidityNext = new(big.Int)
		if err := liquiditymath.AddDelta(liquidityNext, p.Liquidity, liquidityDelta); err != nil {
			return nil, err
		}
	}

	owed0, err := accruedFees(feeGrowthInside0X128, p.FeeGrowthInside0LastX128, p.Liquidity)
	if err != nil {
		return nil, err
	}
	owed1, err := accruedFees(feeGrowthInside1X128, p.FeeGrowthInside1LastX128, p.Liquidity)
	if err != nil {
		return nil, err
	}

	if liquidityDelta.Sign() != 0 {
		p.Liquidity = liquidityNext
	}
	p.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	p.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)
	if owed0.Sign() > 0 {
		p.TokensOwed0.Add(p.TokensOwed0, owed0)
	}
	if owed1.Sign() > 0 {
		p.TokensOwed1.Add(p.TokensOwed1, owed1)
	}

	m[key] = p
	return p, nil
}

// Collect moves up to the requested amounts out of the position's owed
// balances and returns what was actually taken.
func (p *Position) Collect(amount0Requested, amount1Requested *big.Int) (amount0, amount1 *big.Int) {
	amount0 = new(big.Int).Set(amount0Requested)
	if amount0.Cmp(p.TokensOwed0) > 0 {
		amount0.Set(p.TokensOwed0)
	}
	amount1 = new(big.Int).Set(amount1Requested)
	if amount1.Cmp(p.TokensOwed1) > 0 {
		amount1.Set(p.TokensOwed1)
	}
	p.TokensOwed0.Sub(p.TokensOwed0, amount0)
	p.TokensOwed1.Sub(p.TokensOwed1, amount1)
	return amount0, amount1
}

// Clear removes a fully emptied position.
func (m Manager) Clear(key Key) {
	delete(m, key)
}

// accruedFees converts a wrapping fee-growth delta into a token amount for
// the given liquidity.
func accruedFees(inside, insideLast *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	if liquidity.Sign() == 0 {
		return new(big.Int), nil
	}
	delta := new(uint256.Int).Sub(inside, insideLast)
	if delta.IsZero() {
		return new(big.Int), nil
	}
	l, overflow := uint256.FromBig(liquidity)
	if overflow {
		return nil, liquiditymath.ErrLiquidityOverflow
	}
	owed := new(uint256.Int)
	if err := fullmath.MulDiv(owed, delta, l, fullmath.Q128); err != nil {
		return nil, err
	}
	return owed.ToBig(), nil
}
