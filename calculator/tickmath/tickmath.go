package tickmath

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

const (
	// MinTick is the minimum tick that may be passed to GetSqrtRatioAtTick.
	MinTick = int32(-887272)
	// MaxTick is the maximum tick that may be passed to GetSqrtRatioAtTick.
	MaxTick = int32(887272)
)

var (
	// MinSqrtRatio is the minimum value that can be returned from GetSqrtRatioAtTick.
	MinSqrtRatio, _ = new(big.Int).SetString("4295128739", 10)
	// MaxSqrtRatio is the maximum value that can be returned from GetSqrtRatioAtTick.
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	one        = uint256.NewInt(1)
	maxUint256 = new(uint256.Int).Not(uint256.NewInt(0))

	// Multiplicative factors for each bit of |tick|: index i holds
	// sqrt(1.0001^-2^(i-1)) in UQ128.128 for i >= 2, with the two base cases
	// at indexes 0 and 1 and the rounding mask at the end.
	ratioFactors = [22]*uint256.Int{
		mustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),  // |tick| bit 0
		mustFromHex("0x100000000000000000000000000000000"), // 1 in UQ128.128
		mustFromHex("0xfff97272373d413259a46990580e213a"),  // bit 1
		mustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),  // bit 2
		mustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),  // bit 3
		mustFromHex("0xffcb9843d60f6159c9db58835c926644"),  // bit 4
		mustFromHex("0xff973b41fa98c081472e6896dfb254c0"),  // bit 5
		mustFromHex("0xff2ea16466c96a3843ec78b326b52861"),  // bit 6
		mustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),  // bit 7
		mustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),  // bit 8
		mustFromHex("0xf987a7253ac413176f2b074cf7815e54"),  // bit 9
		mustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),  // bit 10
		mustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),  // bit 11
		mustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),  // bit 12
		mustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),  // bit 13
		mustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),  // bit 14
		mustFromHex("0x31be135f97d08fd981231505542fcfa6"),  // bit 15
		mustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),   // bit 16
		mustFromHex("0x5d6af8dedb81196699c329225ee604"),    // bit 17
		mustFromHex("0x2216e584f5fa1ea926041bedfe98"),      // bit 18
		mustFromHex("0x48a170391f7dc42444e8fa2"),           // bit 19
		mustFromHex("0xffffffff"),                          // rounding mask
	}
)

// scratch holds reusable integers so the hot path stays allocation-free.
type scratch struct {
	ratio *uint256.Int
	rem   *uint256.Int
	temp  *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			ratio: new(uint256.Int),
			rem:   new(uint256.Int),
			temp:  new(big.Int),
		}
	},
}

// GetSqrtRatioAtTick writes sqrt(1.0001^tick) * 2^96 into dest as a Q64.96
// fixed-point value, accurate to within 1 ulp across the full tick range.
func GetSqrtRatioAtTick(dest *big.Int, tick int32) error {
	if tick < MinTick || tick > MaxTick {
		return ErrTickOutOfBounds
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	if absTick&0x1 != 0 {
		s.ratio.Set(ratioFactors[0])
	} else {
		s.ratio.Set(ratioFactors[1])
	}
	for i := 2; i < 21; i++ {
		if absTick&(1<<(i-1)) != 0 {
			s.ratio.Mul(s.ratio, ratioFactors[i]).Rsh(s.ratio, 128)
		}
	}

	// The chain computes the ratio for a negative tick; invert for positive.
	if tick > 0 {
		s.ratio.Div(maxUint256, s.ratio)
	}

	// Convert UQ128.128 to Q64.96, rounding up so the boundary invariant of
	// GetTickAtSqrtRatio holds.
	s.rem.And(s.ratio, ratioFactors[21])
	s.ratio.Rsh(s.ratio, 32)
	if !s.rem.IsZero() {
		s.ratio.Add(s.ratio, one)
	}

	s.ratio.IntoBig(&dest)
	return nil
}

// GetTickAtSqrtRatio returns the greatest tick such that
// GetSqrtRatioAtTick(tick) <= sqrtPriceX96, found by binary search over the
// valid tick range.
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrSqrtPriceOutOfBounds
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	low, high := MinTick, MaxTick
	var tick int32
	for low <= high {
		mid := (low + high) / 2
		if err := GetSqrtRatioAtTick(s.temp, mid); err != nil {
			return 0, err
		}
		if s.temp.Cmp(sqrtPriceX96) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}

func mustFromHex(s string) *uint256.Int {
	n, err := uint256.FromHex(s)
	if err != nil {
		panic(err)
	}
	return n
}
