package factory

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-pair-go/token"
)

var (
	owner    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	stranger = common.HexToAddress("0x4444444444444444444444444444444444444444")
	pairAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := New(&Config{
		Owner:    owner,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return f
}

func now() uint32 { return 1601906400 }

func TestDefaultFeeTiers(t *testing.T) {
	f := newFactory(t)
	assert.Equal(t, int32(10), f.TickSpacingForFee(500))
	assert.Equal(t, int32(60), f.TickSpacingForFee(3000))
	assert.Equal(t, int32(200), f.TickSpacingForFee(10_000))
	assert.Equal(t, int32(0), f.TickSpacingForFee(1234))
}

func TestEnableFeeAmount(t *testing.T) {
	f := newFactory(t)

	t.Run("owner only", func(t *testing.T) {
		assert.ErrorIs(t, f.EnableFeeAmount(stranger, 100, 1), ErrNotOwner)
	})

	t.Run("validates fee and spacing", func(t *testing.T) {
		assert.ErrorIs(t, f.EnableFeeAmount(owner, 1_000_000, 10), ErrFeeTooLarge)
		assert.ErrorIs(t, f.EnableFeeAmount(owner, 100, 0), ErrBadTickSpacing)
		assert.ErrorIs(t, f.EnableFeeAmount(owner, 100, 16384), ErrBadTickSpacing)
	})

	t.Run("enables a new tier once", func(t *testing.T) {
		require.NoError(t, f.EnableFeeAmount(owner, 100, 1))
		assert.Equal(t, int32(1), f.TickSpacingForFee(100))
		assert.ErrorIs(t, f.EnableFeeAmount(owner, 100, 2), ErrFeeAlreadyEnabled)
	})
}

func TestCreatePair(t *testing.T) {
	f := newFactory(t)
	tk0 := token.New("TK0")
	tk1 := token.New("TK1")

	t.Run("creates and registers", func(t *testing.T) {
		p, err := f.CreatePair(tk0, tk1, pairAddr, 3000, now)
		require.NoError(t, err)
		assert.Equal(t, int32(60), p.TickSpacing())
		assert.Same(t, p, f.Pair("TK0", "TK1", 3000))
		// lookup order does not matter
		assert.Same(t, p, f.Pair("TK1", "TK0", 3000))
	})

	t.Run("rejects duplicates in either order", func(t *testing.T) {
		_, err := f.CreatePair(tk1, tk0, pairAddr, 3000, now)
		assert.ErrorIs(t, err, ErrPairExists)
	})

	t.Run("rejects identical tokens", func(t *testing.T) {
		_, err := f.CreatePair(tk0, tk0, pairAddr, 3000, now)
		assert.ErrorIs(t, err, ErrIdenticalTokens)
	})

	t.Run("rejects disabled fee tier", func(t *testing.T) {
		_, err := f.CreatePair(tk0, tk1, pairAddr, 1234, now)
		assert.ErrorIs(t, err, ErrFeeNotEnabled)
	})

	t.Run("normalizes token order by symbol", func(t *testing.T) {
		p, err := f.CreatePair(token.New("ZZZ"), token.New("AAA"), pairAddr, 500, now)
		require.NoError(t, err)
		assert.Equal(t, "AAA", p.Token0().Symbol())
		assert.Equal(t, "ZZZ", p.Token1().Symbol())
	})
}
