// Package tickets sells game tickets. A purchase moves the ticket cost into
// custody, appends the player's ordinals, and credits the proceeds pot entry
// in one serialized unit of work per game.
package tickets

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/internal/app/ledger"
	"github.com/openlottery/gamemaster/internal/app/locks"
	"github.com/openlottery/gamemaster/internal/app/metrics"
	"github.com/openlottery/gamemaster/internal/app/storage"
	"github.com/openlottery/gamemaster/pkg/logger"
)

// Service sells tickets for open games.
type Service struct {
	games    storage.GameStore
	transfer ledger.Transferer
	locks    *locks.Keyed
	events   events.Log
	log      *logger.Logger
}

// New creates the ticket service.
func New(games storage.GameStore, transfer ledger.Transferer, keyed *locks.Keyed, eventLog events.Log, log *logger.Logger) *Service {
	if keyed == nil {
		keyed = locks.NewKeyed()
	}
	if eventLog == nil {
		eventLog = events.NoOp{}
	}
	if log == nil {
		log = logger.NewDefault("tickets")
	}
	return &Service{
		games:    games,
		transfer: transfer,
		locks:    keyed,
		events:   eventLog,
		log:      log,
	}
}

// Buy purchases count tickets for player. All limits are checked before any
// funds move; nothing is retained on failure.
func (s *Service) Buy(ctx context.Context, gameNumber uint64, player game.Address, count uint64) (game.Purchase, error) {
	if count == 0 {
		return game.Purchase{}, fmt.Errorf("ticket count: %w", game.ErrInvalidParameter)
	}
	if player == game.Zero {
		return game.Purchase{}, fmt.Errorf("player: %w", game.ErrInvalidParameter)
	}

	unlock := s.locks.Lock(gameNumber)
	defer unlock()

	g, err := s.games.GetGame(ctx, gameNumber)
	if err != nil {
		return game.Purchase{}, err
	}
	if g.Status != game.StatusOpen {
		return game.Purchase{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrGameClosed)
	}

	owned := uint64(len(g.PlayerTickets[player]))
	if owned+count > g.MaxTicketsPlayer {
		return game.Purchase{}, fmt.Errorf("player %s holds %d of %d: %w",
			player, owned, g.MaxTicketsPlayer, game.ErrTicketLimit)
	}
	newPlayer := owned == 0
	if newPlayer && g.PlayerCount+1 > g.MaxPlayers {
		return game.Purchase{}, fmt.Errorf("game %d full at %d players: %w",
			gameNumber, g.MaxPlayers, game.ErrPlayerLimit)
	}

	cost := new(big.Int).Mul(g.TicketPrice, new(big.Int).SetUint64(count))
	if err := s.transfer.Deposit(ctx, game.Fungible, g.TicketToken, player, cost, nil, nil); err != nil {
		return game.Purchase{}, err
	}

	firstOrdinal := g.TicketCount
	for i := uint64(0); i < count; i++ {
		g.TicketIndex = append(g.TicketIndex, player)
		g.PlayerTickets[player] = append(g.PlayerTickets[player], firstOrdinal+i)
	}
	g.TicketCount += count
	if newPlayer {
		g.PlayerCount++
	}
	g.Pot[0].Value = new(big.Int).Add(g.Pot[0].Value, cost)

	if _, err := s.games.UpdateGame(ctx, g); err != nil {
		// Return the funds taken into custody before reporting the failure.
		if rbErr := s.transfer.Release(ctx, game.Fungible, g.TicketToken, player, cost, nil, nil); rbErr != nil {
			s.log.WithError(rbErr).WithField("game", gameNumber).Error("refund after failed update")
		}
		return game.Purchase{}, err
	}

	metrics.RecordTicketsSold(count)
	s.events.Publish(events.Game(events.TicketPurchased, gameNumber, string(player), map[string]string{
		"count":         strconv.FormatUint(count, 10),
		"first_ordinal": strconv.FormatUint(firstOrdinal, 10),
		"cost":          cost.String(),
		"player_count":  strconv.FormatUint(g.PlayerCount, 10),
		"ticket_count":  strconv.FormatUint(g.TicketCount, 10),
	}))
	s.log.WithField("game", gameNumber).WithField("player", player).
		Debugf("sold %d tickets", count)

	return game.Purchase{
		GameNumber:   gameNumber,
		Player:       player,
		FirstOrdinal: firstOrdinal,
		Count:        count,
		PlayerCount:  g.PlayerCount,
		TicketCount:  g.TicketCount,
	}, nil
}
