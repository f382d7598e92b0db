package oracle

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrNotInitialized is returned when the ring has never been written.
	ErrNotInitialized = errors.New("I")
	// ErrTargetTooOld is returned when a query reaches past the oldest
	// observation still held in the ring.
	ErrTargetTooOld = errors.New("OLD")
)

// Observation is one checkpoint of the accumulator values. Timestamps are
// uint32 and wrap; all comparisons go through lte which is aware of at most
// one wrap between the oldest observation and now.
type Observation struct {
	BlockTimestamp                    uint32
	TickCumulative                    int64
	SecondsPerLiquidityCumulativeX128 *uint256.Int
	Initialized                       bool
}

func (o Observation) clone() Observation {
	c := o
	c.SecondsPerLiquidityCumulativeX128 = new(uint256.Int).Set(o.SecondsPerLiquidityCumulativeX128)
	return c
}

// transform rolls an observation forward to a later timestamp without writing
// it, given the tick and liquidity that were in range for the whole interval.
func transform(last Observation, blockTimestamp uint32, tick int32, liquidity *big.Int) Observation {
	delta := blockTimestamp - last.BlockTimestamp

	liq, _ := uint256.FromBig(liquidity)
	if liq.IsZero() {
		liq = uint256.NewInt(1)
	}
	splDelta := new(uint256.Int).Lsh(uint256.NewInt(uint64(delta)), 128)
	splDelta.Div(splDelta, liq)

	return Observation{
		BlockTimestamp:                    blockTimestamp,
		TickCumulative:                    last.TickCumulative + int64(tick)*int64(delta),
		SecondsPerLiquidityCumulativeX128: new(uint256.Int).Add(last.SecondsPerLiquidityCumulativeX128, splDelta),
		Initialized:                       true,
	}
}

// Ring is the observation ring buffer. The slice length is the current
// cardinalityNext; slots past the live cardinality hold placeholders until a
// write rolls the index onto them.
type Ring struct {
	observations []Observation
}

// New returns an empty, uninitialized ring.
func New() *Ring {
	return &Ring{}
}

// Clone returns a deep copy of the ring.
func (r *Ring) Clone() *Ring {
	obs := make([]Observation, len(r.observations))
	for i, o := range r.observations {
		obs[i] = o.clone()
	}
	return &Ring{observations: obs}
}

// Len returns the allocated slot count.
func (r *Ring) Len() int {
	return len(r.observations)
}

// At returns the observation in the given slot.
func (r *Ring) At(i uint16) Observation {
	return r.observations[i]
}

// Initialize stores the first observation and returns the starting
// cardinality and cardinalityNext, both 1.
func (r *Ring) Initialize(time uint32) (cardinality, cardinalityNext uint16) {
	r.observations = []Observation{{
		BlockTimestamp:                    time,
		SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		Initialized:                       true,
	}}
	return 1, 1
}

// Write records a new observation, at most one per timestamp. The ring only
// expands onto pre-grown slots when the index wraps past the current
// cardinality's last slot. It returns the updated index and cardinality.
func (r *Ring) Write(
	index uint16,
	blockTimestamp uint32,
	tick int32,
	liquidity *big.Int,
	cardinality, cardinalityNext uint16,
) (indexUpdated, cardinalityUpdated uint16) {
	last := r.observations[index]
	if last.BlockTimestamp == blockTimestamp {
		return index, cardinality
	}

	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	} else {
		cardinalityUpdated = cardinality
	}

	indexUpdated = (index + 1) % cardinalityUpdated
	r.observations[indexUpdated] = transform(last, blockTimestamp, tick, liquidity)
	return indexUpdated, cardinalityUpdated
}

// Grow allocates slots up to next and returns the new cardinalityNext. The
// placeholder timestamp marks the slot as touched without making it eligible
// for reads.
func (r *Ring) Grow(current, next uint16) (uint16, error) {
	if current == 0 {
		return 0, ErrNotInitialized
	}
	if next <= current {
		return current, nil
	}
	for i := uint16(len(r.observations)); i < next; i++ {
		r.observations = append(r.observations, Observation{
			BlockTimestamp:                    1,
			SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		})
	}
	return next, nil
}

// lte compares two wrapping timestamps given the current time. At most one
// wrap may separate the oldest stored observation from now.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdj := uint64(a)
	if a <= time {
		aAdj += 1 << 32
	}
	bAdj := uint64(b)
	if b <= time {
		bAdj += 1 << 32
	}
	return aAdj <= bAdj
}

// binarySearch locates the pair of observations straddling the target
// timestamp. The oldest slot is (index + 1) % cardinality; uninitialized
// slots in freshly grown rings are skipped upward.
func (r *Ring) binarySearch(time, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter Observation) {
	l := uint32(index+1) % uint32(cardinality)
	rr := l + uint32(cardinality) - 1

	for {
		i := (l + rr) / 2
		beforeOrAt = r.observations[i%uint32(cardinality)]
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter = r.observations[(i+1)%uint32(cardinality)]

		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}
		if !targetAtOrAfter {
			rr = i - 1
		} else {
			l = i + 1
		}
	}
}

// getSurroundingObservations returns the stored (or counterfactual)
// observations bracketing the target time. When the target is newer than the
// latest write, the atOrAfter side is synthesized by rolling the latest
// observation forward with the current tick and liquidity.
func (r *Ring) getSurroundingObservations(
	time, target uint32,
	tick int32,
	index uint16,
	liquidity *big.Int,
	cardinality uint16,
) (beforeOrAt, atOrAfter Observation, err error) {
	beforeOrAt = r.observations[index]

	if lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, Observation{}, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick, liquidity), nil
	}

	// The target is older than the latest write: the oldest live slot bounds
	// how far back we can answer.
	beforeOrAt = r.observations[(index+1)%cardinality]
	if !beforeOrAt.Initialized {
		beforeOrAt = r.observations[0]
	}
	if !lte(time, beforeOrAt.BlockTimestamp, target) {
		return Observation{}, Observation{}, ErrTargetTooOld
	}

	beforeOrAt, atOrAfter = r.binarySearch(time, target, index, cardinality)
	return beforeOrAt, atOrAfter, nil
}

// ObserveSingle returns the accumulator values as of secondsAgo before now.
// secondsAgo == 0 returns the live values, extrapolated from the last write
// if time has passed since.
func (r *Ring) ObserveSingle(
	time, secondsAgo uint32,
	tick int32,
	index uint16,
	liquidity *big.Int,
	cardinality uint16,
) (tickCumulative int64, secondsPerLiquidityCumulativeX128 *uint256.Int, err error) {
	if cardinality == 0 {
		return 0, nil, ErrNotInitialized
	}

	if secondsAgo == 0 {
		last := r.observations[index]
		if last.BlockTimestamp != time {
			last = transform(last, time, tick, liquidity)
		}
		return last.TickCumulative, new(uint256.Int).Set(last.SecondsPerLiquidityCumulativeX128), nil
	}

	target := time - secondsAgo
	beforeOrAt, atOrAfter, err := r.getSurroundingObservations(time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	switch {
	case target == beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, new(uint256.Int).Set(beforeOrAt.SecondsPerLiquidityCumulativeX128), nil
	case target == atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, new(uint256.Int).Set(atOrAfter.SecondsPerLiquidityCumulativeX128), nil
	default:
		// Linear interpolation between the two surrounding observations.
		observationDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
		targetDelta := target - beforeOrAt.BlockTimestamp

		tickCumulative = beforeOrAt.TickCumulative +
			(atOrAfter.TickCumulative-beforeOrAt.TickCumulative)/int64(observationDelta)*int64(targetDelta)

		splDelta := new(uint256.Int).Sub(atOrAfter.SecondsPerLiquidityCumulativeX128, beforeOrAt.SecondsPerLiquidityCumulativeX128)
		splDelta.Mul(splDelta, uint256.NewInt(uint64(targetDelta)))
		splDelta.Div(splDelta, uint256.NewInt(uint64(observationDelta)))
		secondsPerLiquidityCumulativeX128 = new(uint256.Int).Add(beforeOrAt.SecondsPerLiquidityCumulativeX128, splDelta)
		return tickCumulative, secondsPerLiquidityCumulativeX128, nil
	}
}

// Observe runs ObserveSingle for each requested secondsAgo.
func (r *Ring) Observe(
	time uint32,
	secondsAgos []uint32,
	tick int32,
	index uint16,
	liquidity *big.Int,
	cardinality uint16,
) (tickCumulatives []int64, secondsPerLiquidityCumulativeX128s []*uint256.Int, err error) {
	tickCumulatives = make([]int64, len(secondsAgos))
	secondsPerLiquidityCumulativeX128s = make([]*uint256.Int, len(secondsAgos))
	for i, secondsAgo := range secondsAgos {
		tickCumulatives[i], secondsPerLiquidityCumulativeX128s[i], err = r.ObserveSingle(time, secondsAgo, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, err
		}
	}
	return tickCumulatives, secondsPerLiquidityCumulativeX128s, nil
}
