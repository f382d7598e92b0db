package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// Action is one scripted step of a simulation session.
type Action struct {
	// Op is one of "mint", "burn", "swap", "collect", "advance".
	Op string `yaml:"op"`

	// Mint / burn / collect.
	TickLower int32  `yaml:"tick_lower"`
	TickUpper int32  `yaml:"tick_upper"`
	Liquidity string `yaml:"liquidity"`

	// Swap.
	ZeroForOne      bool   `yaml:"zero_for_one"`
	AmountSpecified string `yaml:"amount_specified"`

	// Advance.
	Seconds uint32 `yaml:"seconds"`
}

// SimConfig drives one pairsim session.
type SimConfig struct {
	Token0Symbol string `yaml:"token0_symbol"`
	Token1Symbol string `yaml:"token1_symbol"`
	Fee          uint32 `yaml:"fee"`
	// SqrtPriceX96 is the starting price; decimal string.
	SqrtPriceX96 string `yaml:"sqrt_price_x96"`
	// WalletBalance funds the simulated wallet in both tokens; decimal string.
	WalletBalance string `yaml:"wallet_balance"`

	Actions []Action `yaml:"actions"`
}

// LoadConfig reads and validates a session config from a YAML file.
func LoadConfig(path string) (*SimConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	cfg := &SimConfig{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SimConfig) validate() error {
	if c.Token0Symbol == "" || c.Token1Symbol == "" {
		return errors.New("config: both token symbols are required")
	}
	if c.Token0Symbol == c.Token1Symbol {
		return errors.New("config: token symbols must differ")
	}
	// The factory orders tokens by symbol; requiring sorted symbols here keeps
	// token0/token1 in the config aligned with the pair's view.
	if c.Token0Symbol > c.Token1Symbol {
		return errors.New("config: token0_symbol must sort before token1_symbol")
	}
	if _, ok := new(big.Int).SetString(c.SqrtPriceX96, 10); !ok {
		return fmt.Errorf("config: sqrt_price_x96 %q is not a decimal integer", c.SqrtPriceX96)
	}
	if c.WalletBalance == "" {
		c.WalletBalance = "1000000000000000000000000"
	}
	if _, ok := new(big.Int).SetString(c.WalletBalance, 10); !ok {
		return fmt.Errorf("config: wallet_balance %q is not a decimal integer", c.WalletBalance)
	}

	for i, a := range c.Actions {
		switch a.Op {
		case "mint", "burn", "collect":
			if a.Op != "collect" {
				if _, ok := new(big.Int).SetString(a.Liquidity, 10); !ok {
					return fmt.Errorf("config: action %d: liquidity %q is not a decimal integer", i, a.Liquidity)
				}
			}
		case "swap":
			if _, ok := new(big.Int).SetString(a.AmountSpecified, 10); !ok {
				return fmt.Errorf("config: action %d: amount_specified %q is not a decimal integer", i, a.AmountSpecified)
			}
		case "advance":
			if a.Seconds == 0 {
				return fmt.Errorf("config: action %d: advance needs seconds > 0", i)
			}
		default:
			return fmt.Errorf("config: action %d: unknown op %q", i, a.Op)
		}
	}
	return nil
}

// BigInt parses a validated decimal field.
func BigInt(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}
