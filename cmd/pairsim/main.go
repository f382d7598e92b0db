package main

import (
	"flag"
	"log"
	"log/slog"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/defistate/defistate-pair-go/calculator/tickmath"
	"github.com/defistate/defistate-pair-go/cmd/pairsim/config"
	"github.com/defistate/defistate-pair-go/factory"
	"github.com/defistate/defistate-pair-go/pair"
	"github.com/defistate/defistate-pair-go/token"
)

var (
	walletAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	pairAddr   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	ownerAddr  = common.HexToAddress("0x1000000000000000000000000000000000000003")
)

// session wires a pair with funded in-memory tokens and a wall clock.
type session struct {
	logger *slog.Logger
	pair   *pair.Pair
	token0 *token.Ledger
	token1 *token.Ledger
	clock  uint32
}

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	close := func() {
		os.Exit(1)
	}

	rootLogger := slog.New(rootLogHandler)
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	prometheusRegistry := prometheus.NewRegistry()
	prometheusRegistry.MustRegister(collectors.NewGoCollector())

	s, err := newSession(rootLogger, prometheusRegistry, cfg)
	if err != nil {
		rootLogger.Error("Failed to set up session", "error", err)
		close()
	}

	for i, action := range cfg.Actions {
		if err := s.run(action); err != nil {
			rootLogger.Error("Action failed", "index", i, "op", action.Op, "error", err)
			close()
		}
	}

	s.report()
}

func newSession(logger *slog.Logger, registry prometheus.Registerer, cfg *config.SimConfig) (*session, error) {
	s := &session{
		logger: logger,
		token0: token.New(cfg.Token0Symbol),
		token1: token.New(cfg.Token1Symbol),
		clock:  1601906400,
	}

	balance := config.BigInt(cfg.WalletBalance)
	if err := s.token0.Mint(walletAddr, balance); err != nil {
		return nil, err
	}
	if err := s.token1.Mint(walletAddr, balance); err != nil {
		return nil, err
	}

	f, err := factory.New(&factory.Config{
		Owner:    ownerAddr,
		Logger:   logger.With("component", "factory"),
		Registry: registry,
	})
	if err != nil {
		return nil, err
	}

	s.pair, err = f.CreatePair(s.token0, s.token1, pairAddr, cfg.Fee, func() uint32 { return s.clock })
	if err != nil {
		return nil, err
	}
	if err := s.pair.Initialize(config.BigInt(cfg.SqrtPriceX96)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) run(action config.Action) error {
	switch action.Op {
	case "mint":
		_, _, err := s.pair.Mint(walletAddr, action.TickLower, action.TickUpper,
			config.BigInt(action.Liquidity), nil, s.mintCallback)
		return err

	case "burn":
		_, _, err := s.pair.Burn(walletAddr, action.TickLower, action.TickUpper, config.BigInt(action.Liquidity))
		return err

	case "collect":
		max := new(big.Int).Lsh(big.NewInt(1), 128)
		_, _, err := s.pair.Collect(walletAddr, walletAddr, action.TickLower, action.TickUpper, max, max)
		return err

	case "swap":
		amount := config.BigInt(action.AmountSpecified)
		limit := priceLimitFor(action.ZeroForOne)
		_, _, err := s.pair.Swap(walletAddr, action.ZeroForOne, amount, limit, nil, s.swapCallback)
		return err

	case "advance":
		s.clock += action.Seconds
		return nil
	}
	return nil
}

// mintCallback pays whatever the pair quotes out of the wallet.
func (s *session) mintCallback(amount0Owed, amount1Owed *big.Int, _ []byte) error {
	if amount0Owed.Sign() > 0 {
		if err := s.token0.Transfer(walletAddr, pairAddr, amount0Owed); err != nil {
			return err
		}
	}
	if amount1Owed.Sign() > 0 {
		return s.token1.Transfer(walletAddr, pairAddr, amount1Owed)
	}
	return nil
}

func (s *session) swapCallback(amount0Delta, amount1Delta *big.Int, _ []byte) error {
	if amount0Delta.Sign() > 0 {
		return s.token0.Transfer(walletAddr, pairAddr, amount0Delta)
	}
	if amount1Delta.Sign() > 0 {
		return s.token1.Transfer(walletAddr, pairAddr, amount1Delta)
	}
	return nil
}

// priceLimitFor returns the widest admissible limit for the direction.
func priceLimitFor(zeroForOne bool) *big.Int {
	if zeroForOne {
		return new(big.Int).Add(tickmath.MinSqrtRatio, big.NewInt(1))
	}
	return new(big.Int).Sub(tickmath.MaxSqrtRatio, big.NewInt(1))
}

func (s *session) report() {
	slot0 := s.pair.CurrentSlot0()
	fee0, fee1 := s.pair.FeeGrowthGlobal()
	s.logger.Info("session complete",
		"sqrt_price_x96", slot0.SqrtPriceX96.String(),
		"tick", slot0.Tick,
		"liquidity", s.pair.Liquidity().String(),
		"fee_growth_global0_x128", fee0.String(),
		"fee_growth_global1_x128", fee1.String(),
		"pair_balance0", s.token0.BalanceOf(pairAddr).String(),
		"pair_balance1", s.token1.BalanceOf(pairAddr).String(),
		"wallet_balance0", s.token0.BalanceOf(walletAddr).String(),
		"wallet_balance1", s.token1.BalanceOf(walletAddr).String(),
	)
}

func loadConfig() (*config.SimConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
