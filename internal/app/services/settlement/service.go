// Package settlement closes games: it draws the winning ticket from oracle
// randomness and pays out the pot in one atomic batch.
//
// Every fungible pot entry is split three ways. The treasury takes its cut
// first, the game fee applies to what remains, and the winner receives the
// rest, so the three shares always sum to the entry exactly. Non-fungible
// and semi-fungible entries go to the winner whole.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/openlottery/gamemaster/internal/app/auth"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/internal/app/ledger"
	"github.com/openlottery/gamemaster/internal/app/locks"
	"github.com/openlottery/gamemaster/internal/app/metrics"
	"github.com/openlottery/gamemaster/internal/app/services/oracle"
	"github.com/openlottery/gamemaster/internal/app/storage"
	"github.com/openlottery/gamemaster/pkg/logger"
)

// DefaultTreasuryFeePercent is the treasury cut applied when no override is
// configured.
const DefaultTreasuryFeePercent = 5

var oneHundred = big.NewInt(100)

// Service ends games.
type Service struct {
	games       storage.GameStore
	settings    storage.SettingsStore
	transfer    ledger.Transferer
	source      oracle.Source
	checker     *auth.Checker
	locks       *locks.Keyed
	events      events.Log
	log         *logger.Logger
	treasuryFee uint64
}

// Option configures the service.
type Option func(*Service)

// WithTreasuryFeePercent overrides the treasury cut. Values above 100 are
// clamped to 100.
func WithTreasuryFeePercent(percent uint64) Option {
	return func(s *Service) {
		if percent > 100 {
			percent = 100
		}
		s.treasuryFee = percent
	}
}

// New creates the settlement service.
func New(games storage.GameStore, settings storage.SettingsStore, transfer ledger.Transferer, source oracle.Source, checker *auth.Checker, keyed *locks.Keyed, eventLog events.Log, log *logger.Logger, opts ...Option) *Service {
	if keyed == nil {
		keyed = locks.NewKeyed()
	}
	if eventLog == nil {
		eventLog = events.NoOp{}
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	s := &Service{
		games:       games,
		settings:    settings,
		transfer:    transfer,
		source:      source,
		checker:     checker,
		locks:       keyed,
		events:      eventLog,
		log:         log,
		treasuryFee: DefaultTreasuryFeePercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// End settles the game: draws the winner, pays out every pot entry, and
// closes the record. Either everything applies or the game stays open.
func (s *Service) End(ctx context.Context, gameNumber uint64, caller game.Address) (game.Result, error) {
	start := time.Now()

	unlock := s.locks.Lock(gameNumber)
	defer unlock()

	g, err := s.games.GetGame(ctx, gameNumber)
	if err != nil {
		return game.Result{}, err
	}
	if err := s.checker.CheckGame(ctx, auth.OpEndGame, caller, g); err != nil {
		return game.Result{}, err
	}
	if g.Status != game.StatusOpen {
		return game.Result{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrGameClosed)
	}
	if g.TicketCount == 0 {
		return game.Result{}, fmt.Errorf("game %d: %w", gameNumber, game.ErrNoPlayers)
	}

	randomness, err := s.source.Rand(ctx)
	if err != nil {
		return game.Result{}, fmt.Errorf("draw randomness: %w", err)
	}
	ordinal := new(big.Int).Mod(randomness, new(big.Int).SetUint64(g.TicketCount)).Uint64()
	winner := g.TicketIndex[ordinal]

	treasury, err := s.settings.TreasuryAddress(ctx)
	if err != nil {
		return game.Result{}, err
	}
	if treasury == game.Zero {
		return game.Result{}, fmt.Errorf("treasury address unset: %w", game.ErrInvalidParameter)
	}

	payouts := s.planPayouts(g, winner, treasury)

	prior := g.Clone()
	potSnapshot := prior.Pot
	g.Status = game.StatusClosed
	g.Winner = winner
	if _, err := s.games.UpdateGame(ctx, g); err != nil {
		return game.Result{}, err
	}

	transfers := make([]ledger.Transfer, 0, len(payouts))
	roles := make([]string, 0, len(payouts))
	for _, p := range payouts {
		transfers = append(transfers, ledger.Transfer{
			Kind:         p.Payout.Kind,
			AssetAddress: p.Payout.AssetAddress,
			To:           p.Payout.Recipient,
			Value:        p.Payout.Value,
			Amount:       p.Payout.Amount,
		})
		roles = append(roles, p.Role)
	}
	if err := s.transfer.ReleaseBatch(ctx, transfers); err != nil {
		// Reopen the game so the payout can be retried once custody is fixed.
		if _, rbErr := s.games.UpdateGame(ctx, prior); rbErr != nil {
			s.log.WithError(rbErr).WithField("game", gameNumber).Error("restore after failed payout")
		}
		return game.Result{}, err
	}

	result := game.Result{
		GameNumber:     gameNumber,
		Winner:         winner,
		WinningOrdinal: ordinal,
		Pot:            potSnapshot,
	}
	for _, p := range payouts {
		result.Payouts = append(result.Payouts, p.Payout)
	}

	metrics.RecordSettlement(time.Since(start), roles)
	s.events.Publish(events.Game(events.GameEnded, gameNumber, string(caller), map[string]string{
		"winner":          string(winner),
		"winning_ordinal": strconv.FormatUint(ordinal, 10),
		"pot":             encodePotRecords(potSnapshot),
		"payouts":         encodePayoutRecords(payouts),
	}))
	s.log.WithField("game", gameNumber).WithField("winner", winner).Info("game settled")
	return result, nil
}

type plannedPayout struct {
	Payout game.Payout
	Role   string
}

type potEntryRecord struct {
	Kind      string `json:"kind"`
	Asset     string `json:"asset"`
	Value     string `json:"value"`
	Amount    string `json:"amount,omitempty"`
	Depositor string `json:"depositor,omitempty"`
}

// encodePotRecords renders the settled pot as JSON for the event log, with
// big integers string-encoded like the HTTP views.
func encodePotRecords(pot []game.PotEntry) string {
	records := make([]potEntryRecord, 0, len(pot))
	for _, e := range pot {
		r := potEntryRecord{
			Kind:      e.Kind.String(),
			Asset:     string(e.AssetAddress),
			Value:     e.Value.String(),
			Depositor: string(e.Depositor),
		}
		if e.Amount != nil {
			r.Amount = e.Amount.String()
		}
		records = append(records, r)
	}
	data, _ := json.Marshal(records)
	return string(data)
}

type payoutRecord struct {
	Role      string `json:"role"`
	Kind      string `json:"kind"`
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Value     string `json:"value"`
	Amount    string `json:"amount,omitempty"`
}

func encodePayoutRecords(payouts []plannedPayout) string {
	records := make([]payoutRecord, 0, len(payouts))
	for _, p := range payouts {
		r := payoutRecord{
			Role:      p.Role,
			Kind:      p.Payout.Kind.String(),
			Asset:     string(p.Payout.AssetAddress),
			Recipient: string(p.Payout.Recipient),
			Value:     p.Payout.Value.String(),
		}
		if p.Payout.Amount != nil {
			r.Amount = p.Payout.Amount.String()
		}
		records = append(records, r)
	}
	data, _ := json.Marshal(records)
	return string(data)
}

// planPayouts computes the transfer set for the whole pot. Zero-valued
// fungible shares are dropped rather than transferred.
func (s *Service) planPayouts(g game.Game, winner, treasury game.Address) []plannedPayout {
	var out []plannedPayout

	add := func(role string, kind game.AssetKind, asset, to game.Address, value, amount *big.Int) {
		if kind == game.Fungible && value.Sign() == 0 {
			return
		}
		out = append(out, plannedPayout{
			Role: role,
			Payout: game.Payout{
				Kind:         kind,
				AssetAddress: asset,
				Recipient:    to,
				Value:        value,
				Amount:       amount,
			},
		})
	}

	treasuryPct := new(big.Int).SetUint64(s.treasuryFee)
	gameFeePct := new(big.Int).SetUint64(g.FeePercent)

	for _, e := range g.Pot {
		switch e.Kind {
		case game.Fungible:
			total := e.Value
			treasuryShare := new(big.Int).Div(new(big.Int).Mul(total, treasuryPct), oneHundred)
			remainder := new(big.Int).Sub(total, treasuryShare)
			gameFee := new(big.Int).Div(new(big.Int).Mul(remainder, gameFeePct), oneHundred)
			winnerShare := new(big.Int).Sub(remainder, gameFee)

			add("treasury", e.Kind, e.AssetAddress, treasury, treasuryShare, nil)
			add("fee", e.Kind, e.AssetAddress, g.FeeAddress, gameFee, nil)
			add("winner", e.Kind, e.AssetAddress, winner, winnerShare, nil)
		default:
			add("winner", e.Kind, e.AssetAddress, winner, e.Value, e.Amount)
		}
	}
	return out
}
