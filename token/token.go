package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

// Ledger is an in-memory fungible token: a symbol plus per-address balances.
// It stands in for an external token contract during simulations and tests.
type Ledger struct {
	mu       sync.RWMutex
	symbol   string
	balances map[common.Address]*big.Int
}

// New returns an empty ledger for the given symbol.
func New(symbol string) *Ledger {
	return &Ledger{
		symbol:   symbol,
		balances: make(map[common.Address]*big.Int),
	}
}

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string {
	return l.symbol
}

// BalanceOf returns the holder's balance.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint credits freshly created tokens to the holder.
func (l *Ledger) Mint(holder common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(holder, amount)
	return nil
}

// Transfer moves tokens between holders.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance, ok := l.balances[from]
	if !ok || fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromBalance.Sub(fromBalance, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) credit(holder common.Address, amount *big.Int) {
	if b, ok := l.balances[holder]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[holder] = new(big.Int).Set(amount)
}
