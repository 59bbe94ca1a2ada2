// Package app composes the lottery engine into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/game/        # Domain model: games, pot entries, errors
//	├── ledger/             # In-process asset ledgers and the custody adapter
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── migrations/         # PostgreSQL schema
//	├── services/
//	│   ├── games/          # Registry: create and read games, treasury setting
//	│   ├── tickets/        # Ticket sales
//	│   ├── pot/            # Prize asset deposits and removals
//	│   ├── settlement/     # Winner draw and payout
//	│   └── oracle/         # Randomness source and entropy feeder
//	├── httpapi/            # HTTP handlers and routing
//	├── auth/               # Caller authorization
//	├── locks/              # Per-game serialization
//	├── events/             # Game event history
//	├── system/             # Lifecycle management for background services
//	└── metrics/            # Prometheus collectors
//
// The app package wires services to stores and the asset ledger; business
// rules live in the service packages, and persistence stays behind the
// storage interfaces.
package app
