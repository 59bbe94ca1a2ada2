// Package auth decides which caller may run privileged game operations.
// Managers may act on any game; a game's creator may act on their own game.
package auth

import (
	"context"
	"fmt"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/storage"
)

// Operation names a privileged action.
type Operation string

const (
	OpEndGame        Operation = "end_game"
	OpAddPotAsset    Operation = "add_pot_asset"
	OpRemovePotAsset Operation = "remove_pot_asset"
	OpSetTreasury    Operation = "set_treasury"
)

// Checker authorizes callers against the role store.
type Checker struct {
	settings storage.SettingsStore
}

// NewChecker creates a Checker backed by the settings store.
func NewChecker(settings storage.SettingsStore) *Checker {
	return &Checker{settings: settings}
}

// CheckGame authorizes a game-scoped operation. The game's creator and
// holders of the manager or owner role pass; everyone else gets
// game.ErrUnauthorized.
func (c *Checker) CheckGame(ctx context.Context, op Operation, caller game.Address, g game.Game) error {
	if caller == game.Zero {
		return fmt.Errorf("%s: missing caller: %w", op, game.ErrUnauthorized)
	}
	if caller == g.Creator {
		return nil
	}
	ok, err := c.privileged(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: caller %s: %w", op, caller, game.ErrUnauthorized)
	}
	return nil
}

// CheckAdmin authorizes an engine-scoped operation. Only owner and manager
// role holders pass.
func (c *Checker) CheckAdmin(ctx context.Context, op Operation, caller game.Address) error {
	if caller == game.Zero {
		return fmt.Errorf("%s: missing caller: %w", op, game.ErrUnauthorized)
	}
	ok, err := c.privileged(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: caller %s: %w", op, caller, game.ErrUnauthorized)
	}
	return nil
}

func (c *Checker) privileged(ctx context.Context, caller game.Address) (bool, error) {
	for _, role := range []string{storage.RoleOwner, storage.RoleManager} {
		ok, err := c.settings.HasRole(ctx, role, caller)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
