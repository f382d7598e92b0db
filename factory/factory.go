package factory

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-pair-go/pair"
)

var (
	ErrNotOwner          = errors.New("caller is not the factory owner")
	ErrFeeNotEnabled     = errors.New("fee tier not enabled")
	ErrFeeAlreadyEnabled = errors.New("fee tier already enabled")
	ErrFeeTooLarge       = errors.New("fee must be below 100%")
	ErrBadTickSpacing    = errors.New("tick spacing out of range")
	ErrIdenticalTokens   = errors.New("tokens must differ")
	ErrPairExists        = errors.New("pair already exists")
)

// pairKey identifies a pair by its token symbols and fee tier.
type pairKey struct {
	symbol0, symbol1 string
	fee              uint32
}

// Factory creates pairs and manages the enabled fee tiers.
type Factory struct {
	owner    common.Address
	logger   pair.Logger
	registry prometheus.Registerer

	feeAmountTickSpacing map[uint32]int32
	pairs                map[pairKey]*pair.Pair
}

// Config carries the factory's dependencies.
type Config struct {
	Owner    common.Address
	Logger   pair.Logger
	Registry prometheus.Registerer
}

// New returns a factory with the standard fee tiers enabled:
// 0.05% / 10, 0.30% / 60, 1.00% / 200.
func New(cfg *Config) (*Factory, error) {
	if cfg.Logger == nil {
		return nil, errors.New("config: Logger cannot be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("config: Registry cannot be nil")
	}
	return &Factory{
		owner:    cfg.Owner,
		logger:   cfg.Logger,
		registry: cfg.Registry,
		feeAmountTickSpacing: map[uint32]int32{
			500:    10,
			3000:   60,
			10_000: 200,
		},
		pairs: make(map[pairKey]*pair.Pair),
	}, nil
}

// Owner returns the factory owner, who also owns every created pair.
func (f *Factory) Owner() common.Address {
	return f.owner
}

// TickSpacingForFee returns the tick spacing of an enabled fee tier, or 0.
func (f *Factory) TickSpacingForFee(fee uint32) int32 {
	return f.feeAmountTickSpacing[fee]
}

// EnableFeeAmount makes a new fee tier available for pair creation. Tiers
// cannot be changed or removed once enabled.
func (f *Factory) EnableFeeAmount(caller common.Address, fee uint32, tickSpacing int32) error {
	if caller != f.owner {
		return ErrNotOwner
	}
	if fee >= 1_000_000 {
		return ErrFeeTooLarge
	}
	// The upper bound keeps tickSpacing well inside int16 so bitmap word
	// math cannot overflow.
	if tickSpacing <= 0 || tickSpacing >= 16384 {
		return ErrBadTickSpacing
	}
	if _, ok := f.feeAmountTickSpacing[fee]; ok {
		return ErrFeeAlreadyEnabled
	}
	f.feeAmountTickSpacing[fee] = tickSpacing
	f.logger.Info("fee amount enabled", "fee", fee, "tick_spacing", tickSpacing)
	return nil
}

// CreatePair constructs a pair for the token pair and fee tier. Token order
// is normalized by symbol so (A, B) and (B, A) name the same pair.
func (f *Factory) CreatePair(token0, token1 pair.Token, pairAddress common.Address, fee uint32, now func() uint32) (*pair.Pair, error) {
	if token0 == nil || token1 == nil {
		return nil, errors.New("tokens cannot be nil")
	}
	if token0.Symbol() == token1.Symbol() {
		return nil, ErrIdenticalTokens
	}
	if token0.Symbol() > token1.Symbol() {
		token0, token1 = token1, token0
	}

	tickSpacing, ok := f.feeAmountTickSpacing[fee]
	if !ok {
		return nil, ErrFeeNotEnabled
	}

	key := pairKey{symbol0: token0.Symbol(), symbol1: token1.Symbol(), fee: fee}
	if _, ok := f.pairs[key]; ok {
		return nil, ErrPairExists
	}

	p, err := pair.New(&pair.Config{
		Token0:      token0,
		Token1:      token1,
		Address:     pairAddress,
		Owner:       f.owner,
		Fee:         fee,
		TickSpacing: tickSpacing,
		Now:         now,
		Logger:      f.logger,
		Registry:    prometheus.WrapRegistererWith(prometheus.Labels{
			"pair": key.symbol0 + "/" + key.symbol1,
		}, f.registry),
	})
	if err != nil {
		return nil, err
	}

	f.pairs[key] = p
	f.logger.Info("pair created",
		"token0", key.symbol0, "token1", key.symbol1,
		"fee", fee, "tick_spacing", tickSpacing)
	return p, nil
}

// Pair returns an existing pair, or nil. Token order does not matter.
func (f *Factory) Pair(symbolA, symbolB string, fee uint32) *pair.Pair {
	if symbolA > symbolB {
		symbolA, symbolB = symbolB, symbolA
	}
	return f.pairs[pairKey{symbol0: symbolA, symbol1: symbolB, fee: fee}]
}
