// Package httpapi exposes the engine over a JSON REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/openlottery/gamemaster/internal/app"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/games", h.games)
	mux.HandleFunc("/games/", h.gameResources)
	mux.HandleFunc("/stats", h.stats)
	mux.HandleFunc("/events", h.events)
	mux.HandleFunc("/admin/treasury", h.treasury)
	mux.HandleFunc("/oracle/feed", h.oracleFeed)
	mux.HandleFunc("/healthz", h.healthz)
	return mux
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrTransferFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrGameClosed),
		errors.Is(err, game.ErrTicketLimit),
		errors.Is(err, game.ErrPlayerLimit),
		errors.Is(err, game.ErrNoPlayers):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type potEntryView struct {
	Kind         string `json:"kind"`
	AssetAddress string `json:"asset_address"`
	Value        string `json:"value"`
	Amount       string `json:"amount,omitempty"`
	Depositor    string `json:"depositor"`
}

type gameView struct {
	GameNumber       uint64         `json:"game_number"`
	Status           string         `json:"status"`
	TicketToken      string         `json:"ticket_token"`
	FeeAddress       string         `json:"fee_address"`
	FeePercent       uint64         `json:"fee_percent"`
	TicketPrice      string         `json:"ticket_price"`
	MaxPlayers       uint64         `json:"max_players"`
	MaxTicketsPlayer uint64         `json:"max_tickets_player"`
	PlayerCount      uint64         `json:"player_count"`
	TicketCount      uint64         `json:"ticket_count"`
	Creator          string         `json:"creator"`
	Winner           string         `json:"winner,omitempty"`
	Pot              []potEntryView `json:"pot"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func viewOf(g game.Game) gameView {
	v := gameView{
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
		Winner:           string(g.Winner),
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
	for _, e := range g.Pot {
		entry := potEntryView{
			Kind:         e.Kind.String(),
			AssetAddress: string(e.AssetAddress),
			Value:        e.Value.String(),
			Depositor:    string(e.Depositor),
		}
		if e.Amount != nil {
			entry.Amount = e.Amount.String()
		}
		v.Pot = append(v.Pot, entry)
	}
	return v
}

func parseBig(field, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", field, raw, game.ErrInvalidParameter)
	}
	return v, nil
}

func parseKind(raw int) (game.AssetKind, error) {
	kind := game.AssetKind(raw)
	if !kind.Valid() {
		return 0, fmt.Errorf("asset kind %d: %w", raw, game.ErrInvalidParameter)
	}
	return kind, nil
}

func (h *handler) games(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Creator          string `json:"creator"`
			TicketToken      string `json:"ticket_token"`
			FeeAddress       string `json:"fee_address"`
			FeePercent       uint64 `json:"fee_percent"`
			TicketPrice      string `json:"ticket_price"`
			MaxPlayers       uint64 `json:"max_players"`
			MaxTicketsPlayer uint64 `json:"max_tickets_player"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		price, err := parseBig("ticket_price", payload.TicketPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		g, err := h.app.Games.Start(r.Context(), game.Address(payload.Creator), game.StartParams{
			TicketToken:      game.Address(payload.TicketToken),
			FeeAddress:       game.Address(payload.FeeAddress),
			FeePercent:       payload.FeePercent,
			TicketPrice:      price,
			MaxPlayers:       payload.MaxPlayers,
			MaxTicketsPlayer: payload.MaxTicketsPlayer,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(g))

	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("limit %q: %w", raw, game.ErrInvalidParameter))
				return
			}
			limit = parsed
		}
		active, err := h.app.Games.Active(r.Context(), limit)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if active == nil {
			active = []uint64{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"active": active})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) gameResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/games"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	gameNumber, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("game number %q: %w", parts[0], game.ErrInvalidParameter))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g, err := h.app.Games.Get(r.Context(), gameNumber)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(g))
		return
	}

	switch parts[1] {
	case "tickets":
		h.gameTickets(w, r, gameNumber)
	case "players":
		h.gamePlayer(w, r, gameNumber, parts[2:])
	case "pot":
		h.gamePot(w, r, gameNumber)
	case "end":
		h.gameEnd(w, r, gameNumber)
	case "events":
		h.gameEvents(w, r, gameNumber)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) gameTickets(w http.ResponseWriter, r *http.Request, gameNumber uint64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Player string `json:"player"`
		Count  uint64 `json:"count"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	purchase, err := h.app.Tickets.Buy(r.Context(), gameNumber, game.Address(payload.Player), payload.Count)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"game_number":   purchase.GameNumber,
		"player":        purchase.Player,
		"first_ordinal": purchase.FirstOrdinal,
		"count":         purchase.Count,
		"player_count":  purchase.PlayerCount,
		"ticket_count":  purchase.TicketCount,
	})
}

func (h *handler) gamePlayer(w http.ResponseWriter, r *http.Request, gameNumber uint64, rest []string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(rest) != 1 || rest[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	state, err := h.app.Games.PlayerState(r.Context(), gameNumber, game.Address(rest[0]))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if state.Ordinals == nil {
		state.Ordinals = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_number":  state.GameNumber,
		"player":       state.Player,
		"ticket_count": state.TicketCount,
		"ordinals":     state.Ordinals,
	})
}

func (h *handler) gamePot(w http.ResponseWriter, r *http.Request, gameNumber uint64) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Caller       string `json:"caller"`
			Kind         int    `json:"kind"`
			AssetAddress string `json:"asset_address"`
			Value        string `json:"value"`
			Amount       string `json:"amount"`
			Data         []byte `json:"data"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kind, err := parseKind(payload.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		value, err := parseBig("value", payload.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		amount, err := parseBig("amount", payload.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		g, err := h.app.Pot.Add(r.Context(), gameNumber, game.Address(payload.Caller), game.PotEntry{
			Kind:         kind,
			AssetAddress: game.Address(payload.AssetAddress),
			Value:        value,
			Amount:       amount,
			Data:         payload.Data,
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(g))

	case http.MethodDelete:
		var payload struct {
			Caller       string `json:"caller"`
			Kind         int    `json:"kind"`
			AssetAddress string `json:"asset_address"`
			Value        string `json:"value"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kind, err := parseKind(payload.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		value, err := parseBig("value", payload.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		g, err := h.app.Pot.Remove(r.Context(), gameNumber, game.Address(payload.Caller), kind, game.Address(payload.AssetAddress), value)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(g))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) gameEnd(w http.ResponseWriter, r *http.Request, gameNumber uint64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Settlement.End(r.Context(), gameNumber, game.Address(payload.Caller))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	payouts := make([]map[string]any, 0, len(result.Payouts))
	for _, p := range result.Payouts {
		payout := map[string]any{
			"kind":          p.Kind.String(),
			"asset_address": p.AssetAddress,
			"recipient":     p.Recipient,
			"value":         p.Value.String(),
		}
		if p.Amount != nil {
			payout["amount"] = p.Amount.String()
		}
		payouts = append(payouts, payout)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_number":     result.GameNumber,
		"winner":          result.Winner,
		"winning_ordinal": result.WinningOrdinal,
		"payouts":         payouts,
	})
}

func (h *handler) gameEvents(w http.ResponseWriter, r *http.Request, gameNumber uint64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": h.app.Events.RecentByGame(gameNumber, eventLimit(r)),
	})
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": h.app.Events.Recent(eventLimit(r))})
}

func eventLimit(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.app.Games.Stats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_games":       stats.TotalGames,
		"total_games_ended": stats.TotalEnded,
	})
}

func (h *handler) treasury(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		addr, err := h.app.Games.TreasuryAddress(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"treasury": string(addr)})

	case http.MethodPut:
		var payload struct {
			Caller   string `json:"caller"`
			Treasury string `json:"treasury"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Games.SetTreasuryAddress(r.Context(), game.Address(payload.Caller), game.Address(payload.Treasury)); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"treasury": payload.Treasury})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) oracleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Seed int64 `json:"seed"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Oracle.Feed(r.Context(), payload.Seed); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
