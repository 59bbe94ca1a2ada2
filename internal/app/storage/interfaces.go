package storage

import (
	"context"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

// GameStore persists game records. UpdateGame swaps the entire aggregate
// (game plus pot, ticket index, and per-player ordinals) in one atomic
// write so settlement is never partially observable.
type GameStore interface {
	CreateGame(ctx context.Context, g game.Game) (game.Game, error)
	UpdateGame(ctx context.Context, g game.Game) (game.Game, error)
	GetGame(ctx context.Context, gameNumber uint64) (game.Game, error)
	ListOpenGames(ctx context.Context, limit int) ([]uint64, error)
	CountGames(ctx context.Context) (uint64, error)
	CountEndedGames(ctx context.Context) (uint64, error)
}

// Roles understood by the authorization layer.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
)

// SettingsStore persists process-wide engine settings: the treasury address
// and the role capability set.
type SettingsStore interface {
	TreasuryAddress(ctx context.Context) (game.Address, error)
	SetTreasuryAddress(ctx context.Context, addr game.Address) error

	HasRole(ctx context.Context, role string, addr game.Address) (bool, error)
	GrantRole(ctx context.Context, role string, addr game.Address) error
	RevokeRole(ctx context.Context, role string, addr game.Address) error
}
