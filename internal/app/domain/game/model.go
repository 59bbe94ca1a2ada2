// Package game defines the core lottery domain model: games, pot entries,
// ticket accounting, and the shared error taxonomy.
package game

import (
	"math/big"
	"time"
)

// Address identifies an account or an asset contract. The engine treats it
// as an opaque identity supplied by the transport layer.
type Address string

// Zero is the empty address.
const Zero Address = ""

// Status is the lifecycle state of a game. The only transition is
// Open -> Closed, performed exactly once at settlement.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// AssetKind classifies a pot asset. The numeric values match the wire
// encoding used by event consumers (0 fungible, 1 non-fungible,
// 2 semi-fungible).
type AssetKind int

const (
	Fungible     AssetKind = 0
	NonFungible  AssetKind = 1
	SemiFungible AssetKind = 2
)

func (k AssetKind) String() string {
	switch k {
	case Fungible:
		return "fungible"
	case NonFungible:
		return "non_fungible"
	case SemiFungible:
		return "semi_fungible"
	}
	return "unknown"
}

// Valid reports whether the kind is one of the three supported classes.
func (k AssetKind) Valid() bool {
	return k == Fungible || k == NonFungible || k == SemiFungible
}

// PotEntry is one deposited asset lot held in custody for a game.
// For Fungible entries Value is a token amount; for NonFungible and
// SemiFungible entries Value is the token id, with Amount and Data carrying
// the semi-fungible batch size and auxiliary payload.
type PotEntry struct {
	Kind         AssetKind
	AssetAddress Address
	Value        *big.Int
	Amount       *big.Int `json:",omitempty"`
	Data         []byte   `json:",omitempty"`
	Depositor    Address
}

// StartParams carries the caller-supplied configuration for a new game.
type StartParams struct {
	TicketToken      Address
	FeeAddress       Address
	FeePercent       uint64
	TicketPrice      *big.Int
	MaxPlayers       uint64
	MaxTicketsPlayer uint64
}

// Game is one lottery round. PlayerTickets maps each player to the ordinals
// they own, in purchase order; TicketIndex is the dense ordinal -> owner
// index used for winner selection. Pot entry 0 is reserved for the ticket
// sale proceeds and always uses the ticket token.
type Game struct {
	GameNumber       uint64
	Status           Status
	TicketToken      Address
	FeeAddress       Address
	FeePercent       uint64
	TicketPrice      *big.Int
	MaxPlayers       uint64
	MaxTicketsPlayer uint64
	PlayerCount      uint64
	TicketCount      uint64
	Creator          Address
	Winner           Address `json:",omitempty"`
	Pot              []PotEntry
	TicketIndex      []Address
	PlayerTickets    map[Address][]uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Proceeds returns the implicit ticket-proceeds pot entry. It is always
// present once a game has been created.
func (g *Game) Proceeds() *PotEntry {
	if len(g.Pot) == 0 {
		return nil
	}
	return &g.Pot[0]
}

// Tickets returns the ordinals owned by player, in purchase order.
func (g *Game) Tickets(player Address) []uint64 {
	return g.PlayerTickets[player]
}

// Purchase is the record emitted for a successful ticket purchase.
type Purchase struct {
	GameNumber   uint64
	Player       Address
	FirstOrdinal uint64
	Count        uint64
	PlayerCount  uint64
	TicketCount  uint64
}

// Payout is one asset transfer performed at settlement.
type Payout struct {
	Kind         AssetKind
	AssetAddress Address
	Recipient    Address
	Value        *big.Int
	Amount       *big.Int `json:",omitempty"`
}

// Result is the outcome of closing a game.
type Result struct {
	GameNumber     uint64
	Winner         Address
	WinningOrdinal uint64
	Pot            []PotEntry
	Payouts        []Payout
}

// Clone returns a deep copy of the game, including big.Int values and the
// per-player ticket slices, so callers can mutate snapshots freely.
func (g Game) Clone() Game {
	out := g
	out.TicketPrice = cloneInt(g.TicketPrice)
	out.Pot = make([]PotEntry, len(g.Pot))
	for i, e := range g.Pot {
		out.Pot[i] = e.Clone()
	}
	out.TicketIndex = append([]Address(nil), g.TicketIndex...)
	if g.PlayerTickets != nil {
		out.PlayerTickets = make(map[Address][]uint64, len(g.PlayerTickets))
		for p, ords := range g.PlayerTickets {
			out.PlayerTickets[p] = append([]uint64(nil), ords...)
		}
	}
	return out
}

// Clone returns a deep copy of the entry.
func (e PotEntry) Clone() PotEntry {
	out := e
	out.Value = cloneInt(e.Value)
	out.Amount = cloneInt(e.Amount)
	out.Data = append([]byte(nil), e.Data...)
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
