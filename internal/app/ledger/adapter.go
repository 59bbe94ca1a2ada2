package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

// Transfer describes one outbound asset movement from custody. Value is a
// token amount for fungible assets and a token id otherwise; Amount carries
// the semi-fungible batch size.
type Transfer struct {
	Kind         game.AssetKind
	AssetAddress game.Address
	To           game.Address
	Value        *big.Int
	Amount       *big.Int
	Data         []byte
}

// Transferer moves typed asset lots between external accounts and engine
// custody. Implementations must make ReleaseBatch all-or-nothing: either
// every transfer applies or none does.
type Transferer interface {
	Deposit(ctx context.Context, kind game.AssetKind, asset, from game.Address, value, amount *big.Int, data []byte) error
	Release(ctx context.Context, kind game.AssetKind, asset, to game.Address, value, amount *big.Int, data []byte) error
	ReleaseBatch(ctx context.Context, transfers []Transfer) error
}

// Adapter implements Transferer over in-process ledgers. The custody
// address holds every deposited asset until settlement or removal.
type Adapter struct {
	mu        sync.RWMutex
	custody   game.Address
	fungibles map[game.Address]*Fungible
	nfts      map[game.Address]*NFT
	multis    map[game.Address]*MultiToken
}

var _ Transferer = (*Adapter)(nil)

// NewAdapter creates an adapter holding custody under the given address.
func NewAdapter(custody game.Address) *Adapter {
	return &Adapter{
		custody:   custody,
		fungibles: make(map[game.Address]*Fungible),
		nfts:      make(map[game.Address]*NFT),
		multis:    make(map[game.Address]*MultiToken),
	}
}

// Custody returns the address assets are held under while games are open.
func (a *Adapter) Custody() game.Address { return a.custody }

// RegisterFungible binds a fungible ledger to an asset address.
func (a *Adapter) RegisterFungible(asset game.Address, l *Fungible) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fungibles[asset] = l
}

// RegisterNFT binds a non-fungible ledger to an asset address.
func (a *Adapter) RegisterNFT(asset game.Address, l *NFT) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nfts[asset] = l
}

// RegisterMultiToken binds a semi-fungible ledger to an asset address.
func (a *Adapter) RegisterMultiToken(asset game.Address, l *MultiToken) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.multis[asset] = l
}

// Fungible returns the fungible ledger registered at the asset address.
func (a *Adapter) Fungible(asset game.Address) (*Fungible, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.fungibles[asset]
	return l, ok
}

// NFT returns the non-fungible ledger registered at the asset address.
func (a *Adapter) NFT(asset game.Address) (*NFT, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.nfts[asset]
	return l, ok
}

// MultiToken returns the semi-fungible ledger registered at the asset
// address.
func (a *Adapter) MultiToken(asset game.Address) (*MultiToken, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.multis[asset]
	return l, ok
}

// Deposit pulls one asset lot from the payer into custody. The payer must
// have approved the custody address beforehand; a ledger rejection surfaces
// as game.ErrTransferFailed.
func (a *Adapter) Deposit(_ context.Context, kind game.AssetKind, asset, from game.Address, value, amount *big.Int, data []byte) error {
	switch kind {
	case game.Fungible:
		l, ok := a.Fungible(asset)
		if !ok {
			return fmt.Errorf("%w: %v: %s", game.ErrTransferFailed, ErrUnknownAsset, asset)
		}
		if err := l.TransferFrom(a.custody, from, a.custody, value); err != nil {
			return fmt.Errorf("%w: %v", game.ErrTransferFailed, err)
		}
	case game.NonFungible:
		l, ok := a.NFT(asset)
		if !ok {
			return fmt.Errorf("%w: %v: %s", game.ErrTransferFailed, ErrUnknownAsset, asset)
		}
		if err := l.TransferFrom(a.custody, from, a.custody, value); err != nil {
			return fmt.Errorf("%w: %v", game.ErrTransferFailed, err)
		}
	case game.SemiFungible:
		l, ok := a.MultiToken(asset)
		if !ok {
			return fmt.Errorf("%w: %v: %s", game.ErrTransferFailed, ErrUnknownAsset, asset)
		}
		if err := l.SafeTransferFrom(a.custody, from, a.custody, value, amount, data); err != nil {
			return fmt.Errorf("%w: %v", game.ErrTransferFailed, err)
		}
	default:
		return fmt.Errorf("%w: unsupported asset kind %d", game.ErrInvalidParameter, kind)
	}
	return nil
}

// Release moves one asset lot out of custody to the recipient.
func (a *Adapter) Release(ctx context.Context, kind game.AssetKind, asset, to game.Address, value, amount *big.Int, data []byte) error {
	return a.ReleaseBatch(ctx, []Transfer{{
		Kind:         kind,
		AssetAddress: asset,
		To:           to,
		Value:        value,
		Amount:       amount,
		Data:         data,
	}})
}

// ReleaseBatch applies a set of outbound transfers atomically: every
// transfer is validated against custody holdings before any ledger is
// touched, so a rejection leaves custody untouched.
func (a *Adapter) ReleaseBatch(_ context.Context, transfers []Transfer) error {
	if err := a.validateBatch(transfers); err != nil {
		return err
	}

	for _, t := range transfers {
		var err error
		switch t.Kind {
		case game.Fungible:
			l, _ := a.Fungible(t.AssetAddress)
			err = l.Transfer(a.custody, t.To, t.Value)
		case game.NonFungible:
			l, _ := a.NFT(t.AssetAddress)
			err = l.TransferFrom(a.custody, a.custody, t.To, t.Value)
		case game.SemiFungible:
			l, _ := a.MultiToken(t.AssetAddress)
			err = l.SafeTransferFrom(a.custody, a.custody, t.To, t.Value, t.Amount, t.Data)
		}
		if err != nil {
			// Unreachable after validation for in-process ledgers; kept as a
			// hard failure so bookkeeping bugs cannot pass silently.
			return fmt.Errorf("%w: %v", game.ErrTransferFailed, err)
		}
	}
	return nil
}

func (a *Adapter) validateBatch(transfers []Transfer) error {
	fungibleOut := make(map[game.Address]*big.Int)
	multiOut := make(map[game.Address]map[string]*big.Int)

	for _, t := range transfers {
		switch t.Kind {
		case game.Fungible:
			if _, ok := a.Fungible(t.AssetAddress); !ok {
				return fmt.Errorf("%w: %v: %s", game.ErrTransferFailed, ErrUnknownAsset, t.AssetAddress)
			}
			if out, ok := fungibleOut[t.AssetAddress]; ok {
				out.Add(out, t.Value)
			} else {
				fungibleOut[t.AssetAddress] = new(big.Int).Set(t.Value)
			}
		case game.NonFungible:
			l, ok := a.NFT(t.AssetAddress)
			if !ok {
				return fmt.Errorf("%w: %v: %s", game.ErrTransferFailed, ErrUnknownAsset, t.AssetAddress)
			}
			owner, err := l.OwnerOf(t.Value)
			if err != nil || owner != a.custody {
				return fmt.Errorf("%w: token %s not in custody", game.ErrTransferFailed, t.Value)
			}
		case game.SemiFungible:
			if _, ok := a.MultiToken(t.AssetAddress); !ok {
				return fmt.Errorf("%w: %v: %s", game.ErrTransferFailed, ErrUnknownAsset, t.AssetAddress)
			}
			if multiOut[t.AssetAddress] == nil {
				multiOut[t.AssetAddress] = make(map[string]*big.Int)
			}
			if out, ok := multiOut[t.AssetAddress][t.Value.String()]; ok {
				out.Add(out, t.Amount)
			} else {
				multiOut[t.AssetAddress][t.Value.String()] = new(big.Int).Set(t.Amount)
			}
		default:
			return fmt.Errorf("%w: unsupported asset kind %d", game.ErrInvalidParameter, t.Kind)
		}
	}

	for asset, out := range fungibleOut {
		l, _ := a.Fungible(asset)
		if l.BalanceOf(a.custody).Cmp(out) < 0 {
			return fmt.Errorf("%w: custody short of %s", game.ErrTransferFailed, asset)
		}
	}
	for asset, ids := range multiOut {
		l, _ := a.MultiToken(asset)
		for id, out := range ids {
			tokenID, ok := new(big.Int).SetString(id, 10)
			if !ok {
				return fmt.Errorf("%w: bad token id %s", game.ErrTransferFailed, id)
			}
			if l.BalanceOf(a.custody, tokenID).Cmp(out) < 0 {
				return fmt.Errorf("%w: custody short of %s token %s", game.ErrTransferFailed, asset, id)
			}
		}
	}
	return nil
}
