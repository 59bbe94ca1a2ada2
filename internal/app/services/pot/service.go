// Package pot manages extra prize assets deposited into open games beyond
// the implicit ticket proceeds.
package pot

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/openlottery/gamemaster/internal/app/auth"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/internal/app/ledger"
	"github.com/openlottery/gamemaster/internal/app/locks"
	"github.com/openlottery/gamemaster/internal/app/metrics"
	"github.com/openlottery/gamemaster/internal/app/storage"
	"github.com/openlottery/gamemaster/pkg/logger"
)

// Service adds and removes prize assets.
type Service struct {
	games    storage.GameStore
	transfer ledger.Transferer
	checker  *auth.Checker
	locks    *locks.Keyed
	events   events.Log
	log      *logger.Logger
}

// New creates the pot service.
func New(games storage.GameStore, transfer ledger.Transferer, checker *auth.Checker, keyed *locks.Keyed, eventLog events.Log, log *logger.Logger) *Service {
	if keyed == nil {
		keyed = locks.NewKeyed()
	}
	if eventLog == nil {
		eventLog = events.NoOp{}
	}
	if log == nil {
		log = logger.NewDefault("pot")
	}
	return &Service{
		games:    games,
		transfer: transfer,
		checker:  checker,
		locks:    keyed,
		events:   eventLog,
		log:      log,
	}
}

// Add deposits an asset lot into the game's pot. The caller must be the
// game's creator or a privileged role holder, and becomes the entry's
// depositor of record.
func (s *Service) Add(ctx context.Context, gameNumber uint64, caller game.Address, entry game.PotEntry) (game.Game, error) {
	if err := validateEntry(entry); err != nil {
		return game.Game{}, err
	}

	unlock := s.locks.Lock(gameNumber)
	defer unlock()

	g, err := s.games.GetGame(ctx, gameNumber)
	if err != nil {
		return game.Game{}, err
	}
	if g.Status != game.StatusOpen {
		return game.Game{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrGameClosed)
	}
	if err := s.checker.CheckGame(ctx, auth.OpAddPotAsset, caller, g); err != nil {
		return game.Game{}, err
	}

	if err := s.transfer.Deposit(ctx, entry.Kind, entry.AssetAddress, caller, entry.Value, entry.Amount, entry.Data); err != nil {
		return game.Game{}, err
	}

	entry = entry.Clone()
	entry.Depositor = caller
	g.Pot = append(g.Pot, entry)

	updated, err := s.games.UpdateGame(ctx, g)
	if err != nil {
		if rbErr := s.transfer.Release(ctx, entry.Kind, entry.AssetAddress, caller, entry.Value, entry.Amount, entry.Data); rbErr != nil {
			s.log.WithError(rbErr).WithField("game", gameNumber).Error("refund after failed update")
		}
		return game.Game{}, err
	}

	metrics.RecordPotDeposit(entry.Kind.String())
	s.events.Publish(events.Game(events.PotAssetAdded, gameNumber, string(caller), map[string]string{
		"kind":      entry.Kind.String(),
		"kind_code": strconv.Itoa(int(entry.Kind)),
		"asset":     string(entry.AssetAddress),
		"value":     entry.Value.String(),
	}))
	s.log.WithField("game", gameNumber).WithField("asset", entry.AssetAddress).
		Debug("pot asset added")
	return updated, nil
}

func validateEntry(entry game.PotEntry) error {
	if !entry.Kind.Valid() {
		return fmt.Errorf("asset kind %d: %w", entry.Kind, game.ErrInvalidParameter)
	}
	if entry.AssetAddress == game.Zero {
		return fmt.Errorf("asset address: %w", game.ErrInvalidParameter)
	}
	if entry.Value == nil {
		return fmt.Errorf("asset value: %w", game.ErrInvalidParameter)
	}
	if entry.Kind == game.Fungible && entry.Value.Sign() <= 0 {
		return fmt.Errorf("fungible amount: %w", game.ErrInvalidParameter)
	}
	if entry.Kind == game.SemiFungible && (entry.Amount == nil || entry.Amount.Sign() <= 0) {
		return fmt.Errorf("batch amount: %w", game.ErrInvalidParameter)
	}
	return nil
}

// Remove takes a previously added asset lot back out of the pot and returns
// it to its depositor. The implicit ticket-proceeds entry cannot be removed;
// matching starts at entry one. Remaining entries keep their relative order.
func (s *Service) Remove(ctx context.Context, gameNumber uint64, caller game.Address, kind game.AssetKind, asset game.Address, value *big.Int) (game.Game, error) {
	if value == nil {
		return game.Game{}, fmt.Errorf("asset value: %w", game.ErrInvalidParameter)
	}

	unlock := s.locks.Lock(gameNumber)
	defer unlock()

	g, err := s.games.GetGame(ctx, gameNumber)
	if err != nil {
		return game.Game{}, err
	}
	if g.Status != game.StatusOpen {
		return game.Game{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrGameClosed)
	}
	if err := s.checker.CheckGame(ctx, auth.OpRemovePotAsset, caller, g); err != nil {
		return game.Game{}, err
	}

	idx := -1
	for i := 1; i < len(g.Pot); i++ {
		e := g.Pot[i]
		if e.Kind == kind && e.AssetAddress == asset && e.Value.Cmp(value) == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return game.Game{}, fmt.Errorf("pot entry %s %s: %w", kind, asset, game.ErrNotFound)
	}
	prior := g.Clone()
	removed := g.Pot[idx]
	g.Pot = append(g.Pot[:idx], g.Pot[idx+1:]...)

	// Persist first; if the asset release then fails, restore the record so
	// custody and the pot never disagree.
	updated, err := s.games.UpdateGame(ctx, g)
	if err != nil {
		return game.Game{}, err
	}
	if err := s.transfer.Release(ctx, removed.Kind, removed.AssetAddress, removed.Depositor, removed.Value, removed.Amount, removed.Data); err != nil {
		if _, rbErr := s.games.UpdateGame(ctx, prior); rbErr != nil {
			s.log.WithError(rbErr).WithField("game", gameNumber).Error("restore after failed release")
		}
		return game.Game{}, err
	}

	s.events.Publish(events.Game(events.PotAssetRemoved, gameNumber, string(caller), map[string]string{
		"kind":      removed.Kind.String(),
		"asset":     string(removed.AssetAddress),
		"value":     removed.Value.String(),
		"depositor": string(removed.Depositor),
	}))
	s.log.WithField("game", gameNumber).WithField("asset", removed.AssetAddress).
		Debug("pot asset removed")
	return updated, nil
}
