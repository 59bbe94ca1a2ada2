// Package migrations holds the engine schema and applies it in order.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a named schema step. Statements must be idempotent because
// Apply runs the full list on every startup.
type Migration struct {
	Name string
	SQL  string
}

// All lists the schema steps in the order they must run.
var All = []Migration{
	{
		Name: "create_games",
		SQL: `
			CREATE TABLE IF NOT EXISTS games (
				game_number        BIGINT PRIMARY KEY,
				status             TEXT NOT NULL,
				ticket_token       TEXT NOT NULL,
				fee_address        TEXT NOT NULL,
				fee_percent        BIGINT NOT NULL,
				ticket_price       NUMERIC NOT NULL,
				max_players        BIGINT NOT NULL,
				max_tickets_player BIGINT NOT NULL,
				player_count       BIGINT NOT NULL,
				ticket_count       BIGINT NOT NULL,
				creator            TEXT NOT NULL,
				winner             TEXT,
				pot                JSONB NOT NULL,
				ticket_index       JSONB NOT NULL,
				player_tickets     JSONB NOT NULL,
				created_at         TIMESTAMPTZ NOT NULL,
				updated_at         TIMESTAMPTZ NOT NULL
			)`,
	},
	{
		Name: "index_games_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_games_status ON games (status)`,
	},
	{
		Name: "create_engine_settings",
		SQL: `
			CREATE TABLE IF NOT EXISTS engine_settings (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
	},
	{
		Name: "create_engine_roles",
		SQL: `
			CREATE TABLE IF NOT EXISTS engine_roles (
				role    TEXT NOT NULL,
				address TEXT NOT NULL,
				PRIMARY KEY (role, address)
			)`,
	},
}

// Apply runs every migration against db, stopping at the first failure.
func Apply(ctx context.Context, db *sql.DB) error {
	for _, m := range All {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}
