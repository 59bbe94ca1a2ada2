// Package ledger provides in-process asset registries with standard
// balance/allowance and ownership-transfer semantics, plus the adapter the
// engine uses to move typed asset lots in and out of custody. The engine
// only ever touches assets through the Transferer interface, so a
// chain-backed implementation can be substituted without touching the
// services.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

// Ledger-level rejection reasons. The adapter wraps these in
// game.ErrTransferFailed before they reach the engine.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotOwner              = errors.New("not token owner")
	ErrNotApproved           = errors.New("transfer not approved")
	ErrUnknownAsset          = errors.New("unknown asset address")
)

// Fungible is a token ledger with approve/transferFrom semantics.
type Fungible struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[game.Address]*big.Int
	allowances map[game.Address]map[game.Address]*big.Int
}

// NewFungible creates an empty fungible ledger.
func NewFungible(symbol string) *Fungible {
	return &Fungible{
		symbol:     symbol,
		balances:   make(map[game.Address]*big.Int),
		allowances: make(map[game.Address]map[game.Address]*big.Int),
	}
}

// Symbol returns the ledger's token symbol.
func (f *Fungible) Symbol() string { return f.symbol }

// Mint credits amount to the holder.
func (f *Fungible) Mint(to game.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credit(to, amount)
}

// BalanceOf returns a copy of the holder's balance.
func (f *Fungible) BalanceOf(holder game.Address) *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if b, ok := f.balances[holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Approve lets spender move up to amount of owner's tokens.
func (f *Fungible) Approve(owner, spender game.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowances[owner] == nil {
		f.allowances[owner] = make(map[game.Address]*big.Int)
	}
	f.allowances[owner][spender] = new(big.Int).Set(amount)
}

// Allowance returns a copy of the remaining allowance.
func (f *Fungible) Allowance(owner, spender game.Address) *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if a, ok := f.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Transfer moves amount from the caller's own balance.
func (f *Fungible) Transfer(from, to game.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.move(from, to, amount)
}

// TransferFrom moves amount from `from` on behalf of spender, consuming
// allowance. A holder spending their own balance needs no allowance.
func (f *Fungible) TransferFrom(spender, from, to game.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if spender != from {
		allowed, ok := f.allowances[from][spender]
		if !ok || allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%s: %w", f.symbol, ErrInsufficientAllowance)
		}
		if err := f.move(from, to, amount); err != nil {
			return err
		}
		allowed.Sub(allowed, amount)
		return nil
	}
	return f.move(from, to, amount)
}

func (f *Fungible) move(from, to game.Address, amount *big.Int) error {
	bal, ok := f.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: %w", f.symbol, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	f.credit(to, amount)
	return nil
}

func (f *Fungible) credit(to game.Address, amount *big.Int) {
	if b, ok := f.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	f.balances[to] = new(big.Int).Set(amount)
}
