package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

const (
	alice = game.Address("0xalice")
	bob   = game.Address("0xbob")
	carol = game.Address("0xcarol")
)

func TestFungibleTransfer(t *testing.T) {
	f := NewFungible("TIX")
	f.Mint(alice, big.NewInt(100))

	if err := f.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal := f.BalanceOf(alice); bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice = %v", bal)
	}
	if bal := f.BalanceOf(bob); bal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob = %v", bal)
	}

	if err := f.Transfer(alice, bob, big.NewInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestFungibleTransferFromConsumesAllowance(t *testing.T) {
	f := NewFungible("TIX")
	f.Mint(alice, big.NewInt(100))
	f.Approve(alice, carol, big.NewInt(50))

	if err := f.TransferFrom(carol, alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if remaining := f.Allowance(alice, carol); remaining.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("allowance = %v", remaining)
	}
	if err := f.TransferFrom(carol, alice, bob, big.NewInt(30)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	// Self-transfers need no allowance.
	if err := f.TransferFrom(alice, alice, bob, big.NewInt(30)); err != nil {
		t.Fatalf("self transfer from: %v", err)
	}
}

func TestNFTTransferAuthorization(t *testing.T) {
	n := NewNFT("ART")
	id := n.Mint(alice)

	if err := n.TransferFrom(bob, alice, bob, id); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if err := n.Approve(alice, bob, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := n.TransferFrom(bob, alice, bob, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := n.OwnerOf(id)
	if err != nil || owner != bob {
		t.Fatalf("owner = %q err=%v", owner, err)
	}
	// The per-token approval was cleared by the transfer.
	if err := n.TransferFrom(alice, bob, alice, id); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved after transfer, got %v", err)
	}
}

func TestMultiTokenTransfer(t *testing.T) {
	m := NewMultiToken("SEMI")
	id := m.Mint(alice, big.NewInt(10))

	m.SetApprovalForAll(alice, carol, true)
	if err := m.SafeTransferFrom(carol, alice, bob, id, big.NewInt(4), nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal := m.BalanceOf(alice, id); bal.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("alice = %v", bal)
	}
	if bal := m.BalanceOf(bob, id); bal.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("bob = %v", bal)
	}
	if err := m.SafeTransferFrom(carol, alice, bob, id, big.NewInt(100), nil); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
