package pair

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-pair-go/calculator/liquiditymath"
	"github.com/defistate/defistate-pair-go/calculator/tickmath"
	"github.com/defistate/defistate-pair-go/oracle"
	"github.com/defistate/defistate-pair-go/positions"
	"github.com/defistate/defistate-pair-go/tickbitmap"
	"github.com/defistate/defistate-pair-go/ticktable"
)

// Token is the collaborator through which the pair holds and moves balances.
// The pair only ever transfers out of its own account; inbound transfers
// happen inside callbacks and are verified by balance deltas.
type Token interface {
	Symbol() string
	BalanceOf(holder common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// Callback signatures. Each is invoked while the pair holds its lock and is
// expected to transfer the owed amounts to the pair before returning.
type (
	MintCallback  func(amount0Owed, amount1Owed *big.Int, data []byte) error
	SwapCallback  func(amount0Delta, amount1Delta *big.Int, data []byte) error
	FlashCallback func(fee0, fee1 *big.Int, data []byte) error
)

// Slot0 is the frequently-read state loaded once per operation.
type Slot0 struct {
	SqrtPriceX96               *big.Int
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	// FeeProtocol is the denominator of the protocol's share of swap fees;
	// zero disables the protocol cut.
	FeeProtocol uint8
	Unlocked    bool
}

func (s Slot0) clone() Slot0 {
	c := s
	if s.SqrtPriceX96 != nil {
		c.SqrtPriceX96 = new(big.Int).Set(s.SqrtPriceX96)
	}
	return c
}

// Config carries the immutable parameters and dependencies of a pair.
type Config struct {
	Token0, Token1 Token
	// Address is the account under which the pair holds its reserves.
	Address common.Address
	// Owner may set and collect the protocol fee.
	Owner common.Address
	// Fee in pips (hundredths of a bip); 3000 == 0.30%.
	Fee uint32
	// TickSpacing is the grid on which positions may be placed.
	TickSpacing int32
	// Now supplies the current timestamp; it wraps mod 2^32.
	Now func() uint32

	Logger   Logger
	Registry prometheus.Registerer
	// Sink receives emitted events; optional.
	Sink EventSink
}

func (c *Config) validate() error {
	if c.Token0 == nil || c.Token1 == nil {
		return errors.New("config: Token0 and Token1 cannot be nil")
	}
	if c.Fee >= 1_000_000 {
		return errors.New("config: Fee must be below 100%")
	}
	if c.TickSpacing <= 0 {
		return errors.New("config: TickSpacing must be positive")
	}
	if c.Now == nil {
		return errors.New("config: Now cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return nil
}

// Pair is a two-token concentrated-liquidity market. All mutating operations
// are transactional: on error no state change is visible.
type Pair struct {
	token0, token1 Token
	address        common.Address
	owner          common.Address
	fee            uint32
	tickSpacing    int32
	// maxLiquidityPerTick caps gross liquidity referencing any single tick.
	maxLiquidityPerTick *big.Int

	now     func() uint32
	logger  Logger
	metrics *Metrics
	sink    EventSink

	slot0                Slot0
	liquidity            *big.Int
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	protocolFees0        *big.Int
	protocolFees1        *big.Int

	ticks        ticktable.Table
	bitmap       tickbitmap.Bitmap
	positions    positions.Manager
	observations *oracle.Ring
}

// New constructs an uninitialized pair from a configuration.
func New(cfg *Config) (*Pair, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Pair{
		token0:               cfg.Token0,
		token1:               cfg.Token1,
		address:              cfg.Address,
		owner:                cfg.Owner,
		fee:                  cfg.Fee,
		tickSpacing:          cfg.TickSpacing,
		maxLiquidityPerTick:  liquiditymath.MaxLiquidityPerTick(tickmath.MinTick, tickmath.MaxTick, cfg.TickSpacing),
		now:                  cfg.Now,
		logger:               cfg.Logger,
		metrics:              NewMetrics(cfg.Registry),
		sink:                 cfg.Sink,
		liquidity:            new(big.Int),
		feeGrowthGlobal0X128: new(uint256.Int),
		feeGrowthGlobal1X128: new(uint256.Int),
		protocolFees0:        new(big.Int),
		protocolFees1:        new(big.Int),
		ticks:                ticktable.New(),
		bitmap:               tickbitmap.New(),
		positions:            positions.New(),
		observations:         oracle.New(),
	}, nil
}

// Initialize sets the starting price and unlocks the pair.
func (p *Pair) Initialize(sqrtPriceX96 *big.Int) error {
	if p.slot0.SqrtPriceX96 != nil {
		p.metrics.opFailures.WithLabelValues("initialize").Inc()
		return ErrAlreadyInitialized
	}
	if sqrtPriceX96.Cmp(tickmath.MinSqrtRatio) < 0 {
		return ErrPriceTooLow
	}
	if sqrtPriceX96.Cmp(tickmath.MaxSqrtRatio) >= 0 {
		return ErrPriceTooHigh
	}

	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}

	cardinality, cardinalityNext := p.observations.Initialize(p.now())
	p.slot0 = Slot0{
		SqrtPriceX96:               new(big.Int).Set(sqrtPriceX96),
		Tick:                       tick,
		ObservationCardinality:     cardinality,
		ObservationCardinalityNext: cardinalityNext,
		Unlocked:                   true,
	}

	p.metrics.operations.WithLabelValues("initialize").Inc()
	p.logger.Info("pair initialized",
		"token0", p.token0.Symbol(), "token1", p.token1.Symbol(),
		"sqrt_price_x96", sqrtPriceX96.String(), "tick", tick)
	p.emit(InitializeEvent{SqrtPriceX96: new(big.Int).Set(sqrtPriceX96), Tick: tick})
	return nil
}

// snapshot captures every mutable field so a failed operation can roll back.
type snapshot struct {
	slot0                Slot0
	liquidity            *big.Int
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	protocolFees0        *big.Int
	protocolFees1        *big.Int
	ticks                ticktable.Table
	bitmap               tickbitmap.Bitmap
	positions            positions.Manager
	observations         *oracle.Ring
}

func (p *Pair) snapshot() *snapshot {
	return &snapshot{
		slot0:                p.slot0.clone(),
		liquidity:            new(big.Int).Set(p.liquidity),
		feeGrowthGlobal0X128: new(uint256.Int).Set(p.feeGrowthGlobal0X128),
		feeGrowthGlobal1X128: new(uint256.Int).Set(p.feeGrowthGlobal1X128),
		protocolFees0:        new(big.Int).Set(p.protocolFees0),
		protocolFees1:        new(big.Int).Set(p.protocolFees1),
		ticks:                p.ticks.Clone(),
		bitmap:               p.bitmap.Clone(),
		positions:            p.positions.Clone(),
		observations:         p.observations.Clone(),
	}
}

func (p *Pair) restore(s *snapshot) {
	p.slot0 = s.slot0
	p.liquidity = s.liquidity
	p.feeGrowthGlobal0X128 = s.feeGrowthGlobal0X128
	p.feeGrowthGlobal1X128 = s.feeGrowthGlobal1X128
	p.protocolFees0 = s.protocolFees0
	p.protocolFees1 = s.protocolFees1
	p.ticks = s.ticks
	p.bitmap = s.bitmap
	p.positions = s.positions
	p.observations = s.observations
}

// locked runs a mutating operation under the reentrancy lock with rollback
// on failure. The snapshot is taken before the lock flips so a restore also
// reopens the pair.
func (p *Pair) locked(op string, fn func() error) error {
	if !p.slot0.Unlocked {
		p.metrics.opFailures.WithLabelValues(op).Inc()
		return ErrLocked
	}
	snap := p.snapshot()
	p.slot0.Unlocked = false

	if err := fn(); err != nil {
		p.restore(snap)
		p.metrics.opFailures.WithLabelValues(op).Inc()
		p.logger.Warn("pair operation failed", "op", op, "err", err)
		return err
	}

	p.slot0.Unlocked = true
	p.metrics.operations.WithLabelValues(op).Inc()
	return nil
}

// --- Read surface. These never take the lock and are safe to call from
// --- inside callbacks.

func (p *Pair) Token0() Token           { return p.token0 }
func (p *Pair) Token1() Token           { return p.token1 }
func (p *Pair) Fee() uint32             { return p.fee }
func (p *Pair) TickSpacing() int32      { return p.tickSpacing }
func (p *Pair) Address() common.Address { return p.address }

// CurrentSlot0 returns a copy of the hot state.
func (p *Pair) CurrentSlot0() Slot0 {
	return p.slot0.clone()
}

// Liquidity returns the liquidity currently in range.
func (p *Pair) Liquidity() *big.Int {
	return new(big.Int).Set(p.liquidity)
}

// FeeGrowthGlobal returns the wrapping per-liquidity fee accumulators.
func (p *Pair) FeeGrowthGlobal() (fee0X128, fee1X128 *uint256.Int) {
	return new(uint256.Int).Set(p.feeGrowthGlobal0X128), new(uint256.Int).Set(p.feeGrowthGlobal1X128)
}

// ProtocolFees returns the uncollected protocol fee balances.
func (p *Pair) ProtocolFees() (amount0, amount1 *big.Int) {
	return new(big.Int).Set(p.protocolFees0), new(big.Int).Set(p.protocolFees1)
}

// MaxLiquidityPerTick returns the per-tick gross liquidity cap.
func (p *Pair) MaxLiquidityPerTick() *big.Int {
	return new(big.Int).Set(p.maxLiquidityPerTick)
}

// TickInfo returns a copy of one tick's bookkeeping, or nil.
func (p *Pair) TickInfo(tick int32) *ticktable.Tick {
	info := p.ticks.Get(tick)
	if info == nil {
		return nil
	}
	c := p.ticks.Clone()
	return c.Get(tick)
}

// Position returns a copy of a position, or nil.
func (p *Pair) Position(key positions.Key) *positions.Position {
	if p.positions.Get(key) == nil {
		return nil
	}
	return p.positions.Clone().Get(key)
}

// Observe returns the cumulative tick and seconds-per-liquidity values as of
// each requested secondsAgo. It is a read path and works while the pair is
// locked.
func (p *Pair) Observe(secondsAgos []uint32) (tickCumulatives []int64, secondsPerLiquidityCumulativeX128s []*uint256.Int, err error) {
	p.metrics.oracleQueries.Inc()
	return p.observations.Observe(
		p.now(), secondsAgos, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
}

// IncreaseObservationCardinalityNext grows the oracle ring's target size.
func (p *Pair) IncreaseObservationCardinalityNext(target uint16) error {
	return p.locked("grow_oracle", func() error {
		old := p.slot0.ObservationCardinalityNext
		next, err := p.observations.Grow(old, target)
		if err != nil {
			return err
		}
		p.slot0.ObservationCardinalityNext = next
		if next != old {
			p.logger.Info("observation cardinality increased", "old", old, "new", next)
			p.emit(IncreaseObservationCardinalityNextEvent{Old: old, New: next})
		}
		return nil
	})
}

// SetFeeProtocol sets the protocol's share denominator: 0 disables, 4..10
// route 1/4th through 1/10th of swap fees to the protocol.
func (p *Pair) SetFeeProtocol(caller common.Address, feeProtocol uint8) error {
	return p.locked("set_fee_protocol", func() error {
		if caller != p.owner {
			return ErrNotOwner
		}
		if feeProtocol != 0 && (feeProtocol < 4 || feeProtocol > 10) {
			return ErrInvalidFeeProtocol
		}
		old := p.slot0.FeeProtocol
		p.slot0.FeeProtocol = feeProtocol
		p.logger.Info("fee protocol updated", "old", old, "new", feeProtocol)
		p.emit(SetFeeProtocolEvent{Old: old, New: feeProtocol})
		return nil
	})
}

// CollectProtocol transfers accrued protocol fees, capped by the requests.
func (p *Pair) CollectProtocol(caller, recipient common.Address, amount0Requested, amount1Requested *big.Int) (amount0, amount1 *big.Int, err error) {
	err = p.locked("collect_protocol", func() error {
		if caller != p.owner {
			return ErrNotOwner
		}

		amount0 = bigMin(amount0Requested, p.protocolFees0)
		amount1 = bigMin(amount1Requested, p.protocolFees1)

		if amount0.Sign() > 0 {
			p.protocolFees0.Sub(p.protocolFees0, amount0)
			if err := p.token0.Transfer(p.address, recipient, amount0); err != nil {
				return err
			}
		}
		if amount1.Sign() > 0 {
			p.protocolFees1.Sub(p.protocolFees1, amount1)
			if err := p.token1.Transfer(p.address, recipient, amount1); err != nil {
				return err
			}
		}

		p.emit(CollectProtocolEvent{Recipient: recipient, Amount0: amount0, Amount1: amount1})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) > 0 {
		return new(big.Int).Set(b)
	}
	return new(big.Int).Set(a)
}

// timeOp measures an operation's duration into the given histogram.
func timeOp(h prometheus.Histogram) func() {
	start := time.Now()
	return func() { h.Observe(time.Since(start).Seconds()) }
}
