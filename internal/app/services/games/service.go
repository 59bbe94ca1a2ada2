// Package games manages the game registry: creating games, reading game and
// player state, and the engine-wide treasury setting.
package games

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/openlottery/gamemaster/internal/app/auth"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/internal/app/metrics"
	"github.com/openlottery/gamemaster/internal/app/storage"
	"github.com/openlottery/gamemaster/pkg/logger"
)

// PlayerState is a player's standing within one game.
type PlayerState struct {
	GameNumber  uint64
	Player      game.Address
	TicketCount uint64
	Ordinals    []uint64
}

// Stats summarizes the registry.
type Stats struct {
	TotalGames uint64
	TotalEnded uint64
}

// Service implements the game registry.
type Service struct {
	games    storage.GameStore
	settings storage.SettingsStore
	checker  *auth.Checker
	events   events.Log
	log      *logger.Logger
}

// New creates the registry service. A nil eventLog discards events; a nil
// log defaults to a named logger.
func New(games storage.GameStore, settings storage.SettingsStore, checker *auth.Checker, eventLog events.Log, log *logger.Logger) *Service {
	if eventLog == nil {
		eventLog = events.NoOp{}
	}
	if log == nil {
		log = logger.NewDefault("games")
	}
	return &Service{
		games:    games,
		settings: settings,
		checker:  checker,
		events:   eventLog,
		log:      log,
	}
}

// Start creates a new open game for creator. The ticket-proceeds pot entry
// is materialized immediately at index zero with a zero balance.
func (s *Service) Start(ctx context.Context, creator game.Address, p game.StartParams) (game.Game, error) {
	if err := validateStart(creator, p); err != nil {
		return game.Game{}, err
	}

	g := game.Game{
		Status:           game.StatusOpen,
		TicketToken:      p.TicketToken,
		FeeAddress:       p.FeeAddress,
		FeePercent:       p.FeePercent,
		TicketPrice:      new(big.Int).Set(p.TicketPrice),
		MaxPlayers:       p.MaxPlayers,
		MaxTicketsPlayer: p.MaxTicketsPlayer,
		Creator:          creator,
		Pot: []game.PotEntry{{
			Kind:         game.Fungible,
			AssetAddress: p.TicketToken,
			Value:        big.NewInt(0),
			Depositor:    creator,
		}},
		PlayerTickets: map[game.Address][]uint64{},
	}
	if g.FeeAddress == game.Zero {
		g.FeeAddress = creator
	}

	created, err := s.games.CreateGame(ctx, g)
	if err != nil {
		return game.Game{}, err
	}

	metrics.RecordGameStarted()
	s.events.Publish(events.Game(events.GameStarted, created.GameNumber, string(creator), map[string]string{
		"ticket_token": string(created.TicketToken),
		"ticket_price": created.TicketPrice.String(),
		"fee_percent":  strconv.FormatUint(created.FeePercent, 10),
	}))
	s.log.WithField("game", created.GameNumber).Info("game started")
	return created, nil
}

func validateStart(creator game.Address, p game.StartParams) error {
	if creator == game.Zero {
		return fmt.Errorf("creator: %w", game.ErrInvalidParameter)
	}
	if p.TicketToken == game.Zero {
		return fmt.Errorf("ticket token: %w", game.ErrInvalidParameter)
	}
	if p.TicketPrice == nil || p.TicketPrice.Sign() <= 0 {
		return fmt.Errorf("ticket price: %w", game.ErrInvalidParameter)
	}
	if p.FeePercent > 100 {
		return fmt.Errorf("fee percent %d: %w", p.FeePercent, game.ErrInvalidParameter)
	}
	if p.MaxPlayers == 0 {
		return fmt.Errorf("max players: %w", game.ErrInvalidParameter)
	}
	if p.MaxTicketsPlayer == 0 {
		return fmt.Errorf("max tickets per player: %w", game.ErrInvalidParameter)
	}
	return nil
}

// Get returns one game by number.
func (s *Service) Get(ctx context.Context, gameNumber uint64) (game.Game, error) {
	return s.games.GetGame(ctx, gameNumber)
}

// Active returns open game numbers in ascending order, up to limit.
func (s *Service) Active(ctx context.Context, limit int) ([]uint64, error) {
	return s.games.ListOpenGames(ctx, limit)
}

// Stats returns registry-wide totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.games.CountGames(ctx)
	if err != nil {
		return Stats{}, err
	}
	ended, err := s.games.CountEndedGames(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalGames: total, TotalEnded: ended}, nil
}

// PlayerState returns player's tickets in a game. A player with no tickets
// gets a zero-count state, not an error.
func (s *Service) PlayerState(ctx context.Context, gameNumber uint64, player game.Address) (PlayerState, error) {
	g, err := s.games.GetGame(ctx, gameNumber)
	if err != nil {
		return PlayerState{}, err
	}
	ordinals := g.Tickets(player)
	return PlayerState{
		GameNumber:  gameNumber,
		Player:      player,
		TicketCount: uint64(len(ordinals)),
		Ordinals:    ordinals,
	}, nil
}

// TreasuryAddress returns the configured treasury recipient.
func (s *Service) TreasuryAddress(ctx context.Context) (game.Address, error) {
	return s.settings.TreasuryAddress(ctx)
}

// SetTreasuryAddress changes the treasury recipient. Only owner or manager
// role holders may call it.
func (s *Service) SetTreasuryAddress(ctx context.Context, caller, addr game.Address) error {
	if err := s.checker.CheckAdmin(ctx, auth.OpSetTreasury, caller); err != nil {
		return err
	}
	if addr == game.Zero {
		return fmt.Errorf("treasury address: %w", game.ErrInvalidParameter)
	}
	if err := s.settings.SetTreasuryAddress(ctx, addr); err != nil {
		return err
	}
	s.events.Publish(events.Event{
		Type:     events.TreasuryChanged,
		Actor:    string(caller),
		Metadata: map[string]string{"treasury": string(addr)},
	})
	s.log.WithField("treasury", addr).Info("treasury address changed")
	return nil
}
