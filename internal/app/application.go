package app

import (
	"context"
	"time"

	"github.com/openlottery/gamemaster/internal/app/auth"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/internal/app/ledger"
	"github.com/openlottery/gamemaster/internal/app/locks"
	gamessvc "github.com/openlottery/gamemaster/internal/app/services/games"
	oraclesvc "github.com/openlottery/gamemaster/internal/app/services/oracle"
	potsvc "github.com/openlottery/gamemaster/internal/app/services/pot"
	settlementsvc "github.com/openlottery/gamemaster/internal/app/services/settlement"
	ticketssvc "github.com/openlottery/gamemaster/internal/app/services/tickets"
	"github.com/openlottery/gamemaster/internal/app/storage"
	"github.com/openlottery/gamemaster/internal/app/storage/memory"
	"github.com/openlottery/gamemaster/internal/app/system"
	"github.com/openlottery/gamemaster/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Games    storage.GameStore
	Settings storage.SettingsStore
}

// Options configures engine-wide behavior.
type Options struct {
	// Custody is the address engine-held assets sit under. Defaults to
	// "engine-custody".
	Custody game.Address
	// Admin receives the manager role and becomes the default treasury
	// recipient when none is configured.
	Admin game.Address
	// Treasury forces the treasury recipient, overriding both the stored
	// value and the Admin default.
	Treasury game.Address
	// TreasuryFeePercent overrides the treasury cut taken at settlement.
	// Zero means the default.
	TreasuryFeePercent uint64
	// EntropyInterval is how often fresh entropy feeds the oracle. Zero
	// means the feeder's default.
	EntropyInterval time.Duration
	// EventBuffer is the size of the event history. Zero means the ring
	// buffer's default.
	EventBuffer int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Games      *gamessvc.Service
	Tickets    *ticketssvc.Service
	Pot        *potsvc.Service
	Settlement *settlementsvc.Service
	Oracle     *oraclesvc.Service
	Ledger     *ledger.Adapter
	Events     *events.RingBuffer
}

// New builds a fully initialised application with the provided stores.
func New(ctx context.Context, stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Games == nil {
		stores.Games = mem
	}
	if stores.Settings == nil {
		stores.Settings = mem
	}

	custody := opts.Custody
	if custody == game.Zero {
		custody = "engine-custody"
	}

	if opts.Admin != game.Zero {
		if err := stores.Settings.GrantRole(ctx, storage.RoleManager, opts.Admin); err != nil {
			return nil, err
		}
		// The deploying admin is the treasury until one is set explicitly.
		current, err := stores.Settings.TreasuryAddress(ctx)
		if err != nil {
			return nil, err
		}
		if current == game.Zero {
			if err := stores.Settings.SetTreasuryAddress(ctx, opts.Admin); err != nil {
				return nil, err
			}
		}
	}
	if opts.Treasury != game.Zero {
		if err := stores.Settings.SetTreasuryAddress(ctx, opts.Treasury); err != nil {
			return nil, err
		}
	}

	eventLog := events.NewRingBuffer(opts.EventBuffer)
	adapter := ledger.NewAdapter(custody)
	keyed := locks.NewKeyed()
	checker := auth.NewChecker(stores.Settings)

	oracleService, err := oraclesvc.New(eventLog, log.Named("oracle"))
	if err != nil {
		return nil, err
	}

	var settleOpts []settlementsvc.Option
	if opts.TreasuryFeePercent > 0 {
		settleOpts = append(settleOpts, settlementsvc.WithTreasuryFeePercent(opts.TreasuryFeePercent))
	}

	manager := system.NewManager(log.Named("system"))
	manager.Register(oraclesvc.NewEntropyFeeder(oracleService, opts.EntropyInterval, log.Named("entropy-feeder")))

	return &Application{
		manager: manager,
		log:     log,
		Games:   gamessvc.New(stores.Games, stores.Settings, checker, eventLog, log.Named("games")),
		Tickets: ticketssvc.New(stores.Games, adapter, keyed, eventLog, log.Named("tickets")),
		Pot:     potsvc.New(stores.Games, adapter, checker, keyed, eventLog, log.Named("pot")),
		Settlement: settlementsvc.New(stores.Games, stores.Settings, adapter, oracleService,
			checker, keyed, eventLog, log.Named("settlement"), settleOpts...),
		Oracle: oracleService,
		Ledger: adapter,
		Events: eventLog,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) {
	a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
