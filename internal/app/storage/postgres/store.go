// Package postgres implements the storage interfaces backed by PostgreSQL.
// A game is stored as a single aggregate row (pot, ticket index, and player
// ordinals in JSONB columns) so every update is one atomic write.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/storage"
)

// Store implements GameStore and SettingsStore over a sqlx handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.GameStore = (*Store)(nil)
var _ storage.SettingsStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type gameRow struct {
	GameNumber       uint64         `db:"game_number"`
	Status           string         `db:"status"`
	TicketToken      string         `db:"ticket_token"`
	FeeAddress       string         `db:"fee_address"`
	FeePercent       uint64         `db:"fee_percent"`
	TicketPrice      string         `db:"ticket_price"`
	MaxPlayers       uint64         `db:"max_players"`
	MaxTicketsPlayer uint64         `db:"max_tickets_player"`
	PlayerCount      uint64         `db:"player_count"`
	TicketCount      uint64         `db:"ticket_count"`
	Creator          string         `db:"creator"`
	Winner           sql.NullString `db:"winner"`
	Pot              []byte         `db:"pot"`
	TicketIndex      []byte         `db:"ticket_index"`
	PlayerTickets    []byte         `db:"player_tickets"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

type potEntryRow struct {
	Kind         int    `json:"kind"`
	AssetAddress string `json:"asset_address"`
	Value        string `json:"value"`
	Amount       string `json:"amount,omitempty"`
	Data         []byte `json:"data,omitempty"`
	Depositor    string `json:"depositor"`
}

func encodeGame(g game.Game) (gameRow, error) {
	potRows := make([]potEntryRow, len(g.Pot))
	for i, e := range g.Pot {
		potRows[i] = potEntryRow{
			Kind:         int(e.Kind),
			AssetAddress: string(e.AssetAddress),
			Value:        e.Value.String(),
			Data:         e.Data,
			Depositor:    string(e.Depositor),
		}
		if e.Amount != nil {
			potRows[i].Amount = e.Amount.String()
		}
	}
	pot, err := json.Marshal(potRows)
	if err != nil {
		return gameRow{}, err
	}
	index, err := json.Marshal(g.TicketIndex)
	if err != nil {
		return gameRow{}, err
	}
	players, err := json.Marshal(g.PlayerTickets)
	if err != nil {
		return gameRow{}, err
	}

	row := gameRow{
		GameNumber:       g.GameNumber,
		Status:           string(g.Status),
		TicketToken:      string(g.TicketToken),
		FeeAddress:       string(g.FeeAddress),
		FeePercent:       g.FeePercent,
		TicketPrice:      g.TicketPrice.String(),
		MaxPlayers:       g.MaxPlayers,
		MaxTicketsPlayer: g.MaxTicketsPlayer,
		PlayerCount:      g.PlayerCount,
		TicketCount:      g.TicketCount,
		Creator:          string(g.Creator),
		Pot:              pot,
		TicketIndex:      index,
		PlayerTickets:    players,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
	if g.Winner != game.Zero {
		row.Winner = sql.NullString{String: string(g.Winner), Valid: true}
	}
	return row, nil
}

func decodeGame(row gameRow) (game.Game, error) {
	price, ok := new(big.Int).SetString(row.TicketPrice, 10)
	if !ok {
		return game.Game{}, fmt.Errorf("game %d: bad ticket price %q", row.GameNumber, row.TicketPrice)
	}

	var potRows []potEntryRow
	if err := json.Unmarshal(row.Pot, &potRows); err != nil {
		return game.Game{}, fmt.Errorf("game %d: decode pot: %w", row.GameNumber, err)
	}
	pot := make([]game.PotEntry, len(potRows))
	for i, e := range potRows {
		value, ok := new(big.Int).SetString(e.Value, 10)
		if !ok {
			return game.Game{}, fmt.Errorf("game %d: bad pot value %q", row.GameNumber, e.Value)
		}
		pot[i] = game.PotEntry{
			Kind:         game.AssetKind(e.Kind),
			AssetAddress: game.Address(e.AssetAddress),
			Value:        value,
			Data:         e.Data,
			Depositor:    game.Address(e.Depositor),
		}
		if e.Amount != "" {
			amount, ok := new(big.Int).SetString(e.Amount, 10)
			if !ok {
				return game.Game{}, fmt.Errorf("game %d: bad pot amount %q", row.GameNumber, e.Amount)
			}
			pot[i].Amount = amount
		}
	}

	var index []game.Address
	if err := json.Unmarshal(row.TicketIndex, &index); err != nil {
		return game.Game{}, fmt.Errorf("game %d: decode ticket index: %w", row.GameNumber, err)
	}
	var players map[game.Address][]uint64
	if err := json.Unmarshal(row.PlayerTickets, &players); err != nil {
		return game.Game{}, fmt.Errorf("game %d: decode player tickets: %w", row.GameNumber, err)
	}

	g := game.Game{
		GameNumber:       row.GameNumber,
		Status:           game.Status(row.Status),
		TicketToken:      game.Address(row.TicketToken),
		FeeAddress:       game.Address(row.FeeAddress),
		FeePercent:       row.FeePercent,
		TicketPrice:      price,
		MaxPlayers:       row.MaxPlayers,
		MaxTicketsPlayer: row.MaxTicketsPlayer,
		PlayerCount:      row.PlayerCount,
		TicketCount:      row.TicketCount,
		Creator:          game.Address(row.Creator),
		Pot:              pot,
		TicketIndex:      index,
		PlayerTickets:    players,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.Winner.Valid {
		g.Winner = game.Address(row.Winner.String)
	}
	return g, nil
}

// --- GameStore --------------------------------------------------------------

func (s *Store) CreateGame(ctx context.Context, g game.Game) (game.Game, error) {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	row, err := encodeGame(g)
	if err != nil {
		return game.Game{}, err
	}

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO games (
			game_number, status, ticket_token, fee_address, fee_percent,
			ticket_price, max_players, max_tickets_player, player_count,
			ticket_count, creator, winner, pot, ticket_index, player_tickets,
			created_at, updated_at
		)
		SELECT COALESCE(MAX(game_number) + 1, 0), $1, $2, $3, $4, $5, $6, $7,
		       $8, $9, $10, $11, $12, $13, $14, $15, $16
		FROM games
		RETURNING game_number
	`, row.Status, row.TicketToken, row.FeeAddress, row.FeePercent,
		row.TicketPrice, row.MaxPlayers, row.MaxTicketsPlayer, row.PlayerCount,
		row.TicketCount, row.Creator, row.Winner, row.Pot, row.TicketIndex,
		row.PlayerTickets, row.CreatedAt, row.UpdatedAt,
	).Scan(&g.GameNumber)
	if err != nil {
		return game.Game{}, err
	}
	return g, nil
}

func (s *Store) UpdateGame(ctx context.Context, g game.Game) (game.Game, error) {
	g.UpdatedAt = time.Now().UTC()

	row, err := encodeGame(g)
	if err != nil {
		return game.Game{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE games
		SET status = $2, fee_address = $3, fee_percent = $4, player_count = $5,
		    ticket_count = $6, winner = $7, pot = $8, ticket_index = $9,
		    player_tickets = $10, updated_at = $11
		WHERE game_number = $1
	`, row.GameNumber, row.Status, row.FeeAddress, row.FeePercent,
		row.PlayerCount, row.TicketCount, row.Winner, row.Pot,
		row.TicketIndex, row.PlayerTickets, row.UpdatedAt)
	if err != nil {
		return game.Game{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return game.Game{}, fmt.Errorf("game %d: %w", g.GameNumber, game.ErrNotFound)
	}
	return g, nil
}

func (s *Store) GetGame(ctx context.Context, gameNumber uint64) (game.Game, error) {
	var row gameRow
	err := s.db.GetContext(ctx, &row, `
		SELECT game_number, status, ticket_token, fee_address, fee_percent,
		       ticket_price, max_players, max_tickets_player, player_count,
		       ticket_count, creator, winner, pot, ticket_index,
		       player_tickets, created_at, updated_at
		FROM games
		WHERE game_number = $1
	`, gameNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Game{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrNotFound)
	}
	if err != nil {
		return game.Game{}, err
	}
	return decodeGame(row)
}

func (s *Store) ListOpenGames(ctx context.Context, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 100
	}
	var open []uint64
	err := s.db.SelectContext(ctx, &open, `
		SELECT game_number FROM games
		WHERE status = $1
		ORDER BY game_number
		LIMIT $2
	`, string(game.StatusOpen), limit)
	return open, err
}

func (s *Store) CountGames(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM games`)
	return count, err
}

func (s *Store) CountEndedGames(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM games WHERE status = $1
	`, string(game.StatusClosed))
	return count, err
}

// --- SettingsStore ----------------------------------------------------------

func (s *Store) TreasuryAddress(ctx context.Context) (game.Address, error) {
	var addr string
	err := s.db.GetContext(ctx, &addr, `
		SELECT value FROM engine_settings WHERE key = 'treasury_address'
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Zero, nil
	}
	return game.Address(addr), err
}

func (s *Store) SetTreasuryAddress(ctx context.Context, addr game.Address) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_settings (key, value) VALUES ('treasury_address', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, string(addr))
	return err
}

func (s *Store) HasRole(ctx context.Context, role string, addr game.Address) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM engine_roles WHERE role = $1 AND address = $2
	`, role, string(addr))
	return count > 0, err
}

func (s *Store) GrantRole(ctx context.Context, role string, addr game.Address) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_roles (role, address) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, role, string(addr))
	return err
}

func (s *Store) RevokeRole(ctx context.Context, role string, addr game.Address) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM engine_roles WHERE role = $1 AND address = $2
	`, role, string(addr))
	return err
}
