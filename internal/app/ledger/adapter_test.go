package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

const custody = game.Address("0xcustody")

func newAdapter() (*Adapter, *Fungible, *NFT, *MultiToken) {
	a := NewAdapter(custody)
	f := NewFungible("TIX")
	a.RegisterFungible("0xtix", f)
	n := NewNFT("ART")
	a.RegisterNFT("0xart", n)
	m := NewMultiToken("SEMI")
	a.RegisterMultiToken("0xsemi", m)
	return a, f, n, m
}

func TestDepositAndRelease(t *testing.T) {
	a, f, _, _ := newAdapter()
	ctx := context.Background()

	f.Mint(alice, big.NewInt(100))
	f.Approve(alice, custody, big.NewInt(100))

	if err := a.Deposit(ctx, game.Fungible, "0xtix", alice, big.NewInt(60), nil, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal := f.BalanceOf(custody); bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("custody = %v", bal)
	}

	if err := a.Release(ctx, game.Fungible, "0xtix", bob, big.NewInt(60), nil, nil); err != nil {
		t.Fatalf("release: %v", err)
	}
	if bal := f.BalanceOf(bob); bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("bob = %v", bal)
	}
}

func TestDepositWithoutApprovalFails(t *testing.T) {
	a, f, _, _ := newAdapter()
	f.Mint(alice, big.NewInt(100))

	err := a.Deposit(context.Background(), game.Fungible, "0xtix", alice, big.NewInt(60), nil, nil)
	if !errors.Is(err, game.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
}

func TestDepositUnknownAsset(t *testing.T) {
	a, _, _, _ := newAdapter()
	err := a.Deposit(context.Background(), game.Fungible, "0xnope", alice, big.NewInt(1), nil, nil)
	if !errors.Is(err, game.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
}

func TestReleaseBatchIsAllOrNothing(t *testing.T) {
	a, f, n, _ := newAdapter()
	ctx := context.Background()

	f.Mint(custody, big.NewInt(100))
	id := n.Mint(alice) // not in custody

	err := a.ReleaseBatch(ctx, []Transfer{
		{Kind: game.Fungible, AssetAddress: "0xtix", To: bob, Value: big.NewInt(50)},
		{Kind: game.NonFungible, AssetAddress: "0xart", To: bob, Value: id},
	})
	if !errors.Is(err, game.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	// The fungible leg listed first must not have applied.
	if bal := f.BalanceOf(bob); bal.Sign() != 0 {
		t.Fatalf("partial batch applied: bob = %v", bal)
	}
	if bal := f.BalanceOf(custody); bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("custody touched: %v", bal)
	}
}

func TestReleaseBatchChecksAggregateOutflow(t *testing.T) {
	a, f, _, _ := newAdapter()
	ctx := context.Background()

	f.Mint(custody, big.NewInt(100))

	// Each leg fits on its own but together they exceed custody.
	err := a.ReleaseBatch(ctx, []Transfer{
		{Kind: game.Fungible, AssetAddress: "0xtix", To: alice, Value: big.NewInt(70)},
		{Kind: game.Fungible, AssetAddress: "0xtix", To: bob, Value: big.NewInt(70)},
	})
	if !errors.Is(err, game.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if bal := f.BalanceOf(custody); bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("custody touched: %v", bal)
	}
}

func TestReleaseBatchMixedKinds(t *testing.T) {
	a, f, n, m := newAdapter()
	ctx := context.Background()

	f.Mint(custody, big.NewInt(100))
	id := n.Mint(custody)
	semiID := m.Mint(custody, big.NewInt(10))

	err := a.ReleaseBatch(ctx, []Transfer{
		{Kind: game.Fungible, AssetAddress: "0xtix", To: alice, Value: big.NewInt(100)},
		{Kind: game.NonFungible, AssetAddress: "0xart", To: bob, Value: id},
		{Kind: game.SemiFungible, AssetAddress: "0xsemi", To: carol, Value: semiID, Amount: big.NewInt(10)},
	})
	if err != nil {
		t.Fatalf("release batch: %v", err)
	}
	if bal := f.BalanceOf(alice); bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice = %v", bal)
	}
	owner, _ := n.OwnerOf(id)
	if owner != bob {
		t.Fatalf("token owner = %q", owner)
	}
	if bal := m.BalanceOf(carol, semiID); bal.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("carol semi = %v", bal)
	}
}
