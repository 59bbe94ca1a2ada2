package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

// NFT is a unique-item ledger keyed by token id, with per-token approval
// and operator approval.
type NFT struct {
	mu        sync.RWMutex
	symbol    string
	owners    map[string]game.Address
	approved  map[string]game.Address
	operators map[game.Address]map[game.Address]bool
	nextID    int64
}

// NewNFT creates an empty non-fungible ledger.
func NewNFT(symbol string) *NFT {
	return &NFT{
		symbol:    symbol,
		owners:    make(map[string]game.Address),
		approved:  make(map[string]game.Address),
		operators: make(map[game.Address]map[game.Address]bool),
	}
}

// Symbol returns the ledger's token symbol.
func (n *NFT) Symbol() string { return n.symbol }

// Mint issues a fresh token to the recipient and returns its id.
func (n *NFT) Mint(to game.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := big.NewInt(n.nextID)
	n.nextID++
	n.owners[id.String()] = to
	return id
}

// OwnerOf returns the current owner of the token.
func (n *NFT) OwnerOf(id *big.Int) (game.Address, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[id.String()]
	if !ok {
		return game.Zero, fmt.Errorf("%s token %s: %w", n.symbol, id, ErrNotOwner)
	}
	return owner, nil
}

// Approve lets spender move one specific token.
func (n *NFT) Approve(owner, spender game.Address, id *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.owners[id.String()] != owner {
		return fmt.Errorf("%s token %s: %w", n.symbol, id, ErrNotOwner)
	}
	n.approved[id.String()] = spender
	return nil
}

// SetApprovalForAll grants or revokes operator rights over all of owner's
// tokens.
func (n *NFT) SetApprovalForAll(owner, operator game.Address, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.operators[owner] == nil {
		n.operators[owner] = make(map[game.Address]bool)
	}
	n.operators[owner][operator] = ok
}

// TransferFrom moves the token from `from` on behalf of spender. The owner,
// the per-token approved spender, and approved operators may transfer.
func (n *NFT) TransferFrom(spender, from, to game.Address, id *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := id.String()
	owner, ok := n.owners[key]
	if !ok || owner != from {
		return fmt.Errorf("%s token %s: %w", n.symbol, id, ErrNotOwner)
	}
	if spender != owner && n.approved[key] != spender && !n.operators[owner][spender] {
		return fmt.Errorf("%s token %s: %w", n.symbol, id, ErrNotApproved)
	}
	n.owners[key] = to
	delete(n.approved, key)
	return nil
}
