package pot

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/openlottery/gamemaster/internal/app/auth"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/internal/app/ledger"
	"github.com/openlottery/gamemaster/internal/app/storage/memory"
)

const (
	custody     = game.Address("0xcustody")
	ticketToken = game.Address("0xticket")
	prizeToken  = game.Address("0xprize")
	nftToken    = game.Address("0xnft")
	creator     = game.Address("0xcreator")
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	adapter *ledger.Adapter
	prize   *ledger.Fungible
	nft     *ledger.NFT
	game    game.Game
	events  *events.RingBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	adapter := ledger.NewAdapter(custody)
	adapter.RegisterFungible(ticketToken, ledger.NewFungible("TIX"))
	prize := ledger.NewFungible("PRZ")
	adapter.RegisterFungible(prizeToken, prize)
	nft := ledger.NewNFT("ART")
	adapter.RegisterNFT(nftToken, nft)
	rb := events.NewRingBuffer(16)

	g, err := store.CreateGame(context.Background(), game.Game{
		Status:           game.StatusOpen,
		TicketToken:      ticketToken,
		FeeAddress:       creator,
		TicketPrice:      big.NewInt(1000),
		MaxPlayers:       10,
		MaxTicketsPlayer: 5,
		Creator:          creator,
		Pot: []game.PotEntry{{
			Kind:         game.Fungible,
			AssetAddress: ticketToken,
			Value:        big.NewInt(0),
			Depositor:    creator,
		}},
		PlayerTickets: map[game.Address][]uint64{},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	return &fixture{
		svc:     New(store, adapter, auth.NewChecker(store), nil, rb, nil),
		store:   store,
		adapter: adapter,
		prize:   prize,
		nft:     nft,
		game:    g,
		events:  rb,
	}
}

func TestAddFungiblePrize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prize.Mint(creator, big.NewInt(500))
	f.prize.Approve(creator, custody, big.NewInt(500))

	updated, err := f.svc.Add(ctx, f.game.GameNumber, creator, game.PotEntry{
		Kind:         game.Fungible,
		AssetAddress: prizeToken,
		Value:        big.NewInt(500),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(updated.Pot) != 2 {
		t.Fatalf("expected 2 pot entries, got %d", len(updated.Pot))
	}
	if updated.Pot[1].Depositor != creator {
		t.Fatalf("depositor = %q", updated.Pot[1].Depositor)
	}
	if bal := f.prize.BalanceOf(custody); bal.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("custody prize balance = %v", bal)
	}

	recent := f.events.Recent(1)
	if len(recent) != 1 || recent[0].Type != events.PotAssetAdded {
		t.Fatalf("expected pot event, got %v", recent)
	}
}

func TestAddNFTPrize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.nft.Mint(creator)
	f.nft.SetApprovalForAll(creator, custody, true)

	updated, err := f.svc.Add(ctx, f.game.GameNumber, creator, game.PotEntry{
		Kind:         game.NonFungible,
		AssetAddress: nftToken,
		Value:        id,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(updated.Pot) != 2 || updated.Pot[1].Kind != game.NonFungible {
		t.Fatalf("unexpected pot: %+v", updated.Pot)
	}
	owner, err := f.nft.OwnerOf(id)
	if err != nil || owner != custody {
		t.Fatalf("token owner = %q err=%v", owner, err)
	}
}

func TestAddAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prize.Mint("0xrando", big.NewInt(500))
	f.prize.Approve("0xrando", custody, big.NewInt(500))

	_, err := f.svc.Add(ctx, f.game.GameNumber, "0xrando", game.PotEntry{
		Kind:         game.Fungible,
		AssetAddress: prizeToken,
		Value:        big.NewInt(500),
	})
	if !errors.Is(err, game.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if bal := f.prize.BalanceOf(custody); bal.Sign() != 0 {
		t.Fatalf("funds moved despite rejection: %v", bal)
	}
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]game.PotEntry{
		"bad kind":    {Kind: game.AssetKind(9), AssetAddress: prizeToken, Value: big.NewInt(1)},
		"no asset":    {Kind: game.Fungible, Value: big.NewInt(1)},
		"nil value":   {Kind: game.Fungible, AssetAddress: prizeToken},
		"zero amount": {Kind: game.Fungible, AssetAddress: prizeToken, Value: big.NewInt(0)},
		"semi no batch": {
			Kind: game.SemiFungible, AssetAddress: prizeToken, Value: big.NewInt(1),
		},
	}
	for name, entry := range cases {
		if _, err := f.svc.Add(ctx, f.game.GameNumber, creator, entry); !errors.Is(err, game.ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", name, err)
		}
	}
}

func TestAddClosedGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, _ := f.store.GetGame(ctx, f.game.GameNumber)
	g.Status = game.StatusClosed
	if _, err := f.store.UpdateGame(ctx, g); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := f.svc.Add(ctx, f.game.GameNumber, creator, game.PotEntry{
		Kind:         game.Fungible,
		AssetAddress: prizeToken,
		Value:        big.NewInt(1),
	})
	if !errors.Is(err, game.ErrGameClosed) {
		t.Fatalf("expected ErrGameClosed, got %v", err)
	}
}

func TestRemoveReturnsAssetToDepositor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prize.Mint(creator, big.NewInt(800))
	f.prize.Approve(creator, custody, big.NewInt(800))
	if _, err := f.svc.Add(ctx, f.game.GameNumber, creator, game.PotEntry{
		Kind: game.Fungible, AssetAddress: prizeToken, Value: big.NewInt(300),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.Add(ctx, f.game.GameNumber, creator, game.PotEntry{
		Kind: game.Fungible, AssetAddress: prizeToken, Value: big.NewInt(500),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := f.svc.Remove(ctx, f.game.GameNumber, creator, game.Fungible, prizeToken, big.NewInt(300))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	// The later entry shifts down; the proceeds entry stays at index zero.
	if len(updated.Pot) != 2 || updated.Pot[1].Value.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected pot after removal: %+v", updated.Pot)
	}
	if bal := f.prize.BalanceOf(creator); bal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("creator balance = %v, want refunded 300", bal)
	}
	if bal := f.prize.BalanceOf(custody); bal.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("custody balance = %v", bal)
	}

	recent := f.events.Recent(1)
	if len(recent) != 1 || recent[0].Type != events.PotAssetRemoved {
		t.Fatalf("expected removal event, got %v", recent)
	}
}

func TestRemoveNeverTouchesProceedsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The proceeds entry uses the ticket token; asking to remove a matching
	// lot must not find entry zero.
	_, err := f.svc.Remove(ctx, f.game.GameNumber, creator, game.Fungible, ticketToken, big.NewInt(0))
	if !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveUnknownEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Remove(context.Background(), f.game.GameNumber, creator, game.Fungible, prizeToken, big.NewInt(42))
	if !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
