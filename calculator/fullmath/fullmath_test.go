package fullmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRandInt generates a random uint256.Int up to a given number of bits.
func newRandInt(bits int) *uint256.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return uint256.MustFromBig(n)
}

func TestMulDiv(t *testing.T) {
	t.Run("zero denominator", func(t *testing.T) {
		dest := new(uint256.Int)
		err := MulDiv(dest, uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDenominatorZero)
	})

	t.Run("overflowing result", func(t *testing.T) {
		dest := new(uint256.Int)
		err := MulDiv(dest, maxUint256, maxUint256, uint256.NewInt(1))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResultOverflow)
	})

	t.Run("full precision intermediate", func(t *testing.T) {
		// (2^255) * 4 / 8 exceeds 256 bits in the intermediate product but
		// fits in the result.
		a := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
		dest := new(uint256.Int)
		err := MulDiv(dest, a, uint256.NewInt(4), uint256.NewInt(8))
		require.NoError(t, err)
		assert.True(t, dest.Eq(new(uint256.Int).Lsh(uint256.NewInt(1), 254)))
	})

	t.Run("accurate without phantom overflow", func(t *testing.T) {
		// Q128 * 0.5Q128 / 1.5Q128 == Q128 / 3
		a := new(uint256.Int).Set(Q128)
		b := new(uint256.Int).Rsh(Q128, 1)
		denom := new(uint256.Int).Add(Q128, b)
		dest := new(uint256.Int)
		err := MulDiv(dest, a, b, denom)
		require.NoError(t, err)
		expected := new(uint256.Int).Div(Q128, uint256.NewInt(3))
		assert.True(t, dest.Eq(expected))
	})
}

func TestMulDivRoundingUp(t *testing.T) {
	t.Run("rounds up on remainder", func(t *testing.T) {
		dest := new(uint256.Int)
		err := MulDivRoundingUp(dest, uint256.NewInt(7), uint256.NewInt(1), uint256.NewInt(2))
		require.NoError(t, err)
		assert.Equal(t, uint64(4), dest.Uint64())
	})

	t.Run("exact division does not round", func(t *testing.T) {
		dest := new(uint256.Int)
		err := MulDivRoundingUp(dest, uint256.NewInt(8), uint256.NewInt(1), uint256.NewInt(2))
		require.NoError(t, err)
		assert.Equal(t, uint64(4), dest.Uint64())
	})

	t.Run("overflow after rounding", func(t *testing.T) {
		dest := new(uint256.Int)
		// maxUint256 * maxUint256 / maxUint256 == maxUint256 exactly, no
		// remainder, so it succeeds; adding one more unit of numerator fails.
		err := MulDivRoundingUp(dest, maxUint256, maxUint256, maxUint256)
		require.NoError(t, err)
		assert.True(t, dest.Eq(maxUint256))
	})
}

// TestMulDiv_Invariants cross-checks the uint256 implementation against
// math/big on random inputs.
func TestMulDiv_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		a := newRandInt(200)
		b := newRandInt(120)
		denom := newRandInt(160)
		if denom.IsZero() {
			denom.SetUint64(1)
		}

		dest := new(uint256.Int)
		err := MulDiv(dest, a, b, denom)
		require.NoError(t, err)

		expected := new(big.Int).Mul(a.ToBig(), b.ToBig())
		expected.Div(expected, denom.ToBig())
		assert.Zero(t, dest.ToBig().Cmp(expected))

		destUp := new(uint256.Int)
		err = MulDivRoundingUp(destUp, a, b, denom)
		require.NoError(t, err)

		// ceil - floor is at most one.
		diff := new(uint256.Int).Sub(destUp, dest)
		assert.True(t, diff.LtUint64(2))
	}
}

func TestDivRoundingUp(t *testing.T) {
	dest := new(uint256.Int)
	require.NoError(t, DivRoundingUp(dest, uint256.NewInt(10), uint256.NewInt(3)))
	assert.Equal(t, uint64(4), dest.Uint64())

	require.NoError(t, DivRoundingUp(dest, uint256.NewInt(9), uint256.NewInt(3)))
	assert.Equal(t, uint64(3), dest.Uint64())

	err := DivRoundingUp(dest, uint256.NewInt(1), uint256.NewInt(0))
	assert.ErrorIs(t, err, ErrDenominatorZero)
}
