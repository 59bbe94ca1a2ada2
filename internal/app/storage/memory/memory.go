// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/storage"
)

// Store holds games and settings in mutex-guarded maps. Reads return deep
// clones so callers can never alias stored state.
type Store struct {
	mu       sync.RWMutex
	nextGame uint64
	games    map[uint64]game.Game
	treasury game.Address
	roles    map[string]map[game.Address]bool
}

var _ storage.GameStore = (*Store)(nil)
var _ storage.SettingsStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		games: make(map[uint64]game.Game),
		roles: make(map[string]map[game.Address]bool),
	}
}

// --- GameStore --------------------------------------------------------------

func (s *Store) CreateGame(_ context.Context, g game.Game) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.GameNumber = s.nextGame
	s.nextGame++

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	s.games[g.GameNumber] = g.Clone()
	return g.Clone(), nil
}

func (s *Store) UpdateGame(_ context.Context, g game.Game) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.games[g.GameNumber]
	if !ok {
		return game.Game{}, fmt.Errorf("game %d: %w", g.GameNumber, game.ErrNotFound)
	}

	g.CreatedAt = original.CreatedAt
	g.UpdatedAt = time.Now().UTC()

	s.games[g.GameNumber] = g.Clone()
	return g.Clone(), nil
}

func (s *Store) GetGame(_ context.Context, gameNumber uint64) (game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[gameNumber]
	if !ok {
		return game.Game{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrNotFound)
	}
	return g.Clone(), nil
}

func (s *Store) ListOpenGames(_ context.Context, limit int) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []uint64
	for n, g := range s.games {
		if g.Status == game.StatusOpen {
			open = append(open, n)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *Store) CountGames(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.games)), nil
}

func (s *Store) CountEndedGames(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ended uint64
	for _, g := range s.games {
		if g.Status == game.StatusClosed {
			ended++
		}
	}
	return ended, nil
}

// --- SettingsStore ----------------------------------------------------------

func (s *Store) TreasuryAddress(_ context.Context) (game.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury, nil
}

func (s *Store) SetTreasuryAddress(_ context.Context, addr game.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treasury = addr
	return nil
}

func (s *Store) HasRole(_ context.Context, role string, addr game.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[role][addr], nil
}

func (s *Store) GrantRole(_ context.Context, role string, addr game.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[role] == nil {
		s.roles[role] = make(map[game.Address]bool)
	}
	s.roles[role][addr] = true
	return nil
}

func (s *Store) RevokeRole(_ context.Context, role string, addr game.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles[role], addr)
	return nil
}
