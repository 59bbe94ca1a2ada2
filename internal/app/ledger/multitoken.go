package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

// MultiToken is a semi-fungible ledger: per-id per-holder balances with
// operator approval, so one id can exist as a batch spread across holders.
type MultiToken struct {
	mu        sync.RWMutex
	symbol    string
	balances  map[string]map[game.Address]*big.Int
	operators map[game.Address]map[game.Address]bool
	nextID    int64
}

// NewMultiToken creates an empty semi-fungible ledger.
func NewMultiToken(symbol string) *MultiToken {
	return &MultiToken{
		symbol:    symbol,
		balances:  make(map[string]map[game.Address]*big.Int),
		operators: make(map[game.Address]map[game.Address]bool),
	}
}

// Symbol returns the ledger's token symbol.
func (m *MultiToken) Symbol() string { return m.symbol }

// Mint issues amount units of a fresh id to the recipient and returns the id.
func (m *MultiToken) Mint(to game.Address, amount *big.Int) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := big.NewInt(m.nextID)
	m.nextID++
	m.balances[id.String()] = map[game.Address]*big.Int{to: new(big.Int).Set(amount)}
	return id
}

// BalanceOf returns a copy of the holder's balance for one id.
func (m *MultiToken) BalanceOf(holder game.Address, id *big.Int) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[id.String()][holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// SetApprovalForAll grants or revokes operator rights over all of owner's
// token ids.
func (m *MultiToken) SetApprovalForAll(owner, operator game.Address, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.operators[owner] == nil {
		m.operators[owner] = make(map[game.Address]bool)
	}
	m.operators[owner][operator] = ok
}

// SafeTransferFrom moves amount units of id from `from` on behalf of
// spender. The data payload is accepted for interface parity and ignored.
func (m *MultiToken) SafeTransferFrom(spender, from, to game.Address, id, amount *big.Int, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if spender != from && !m.operators[from][spender] {
		return fmt.Errorf("%s token %s: %w", m.symbol, id, ErrNotApproved)
	}

	key := id.String()
	bal, ok := m.balances[key][from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s token %s: %w", m.symbol, id, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)

	if m.balances[key] == nil {
		m.balances[key] = make(map[game.Address]*big.Int)
	}
	if b, ok := m.balances[key][to]; ok {
		b.Add(b, amount)
	} else {
		m.balances[key][to] = new(big.Int).Set(amount)
	}
	return nil
}
