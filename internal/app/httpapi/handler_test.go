package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	app "github.com/openlottery/gamemaster/internal/app"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/ledger"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Application, *ledger.Fungible) {
	t.Helper()

	application, err := app.New(context.Background(), app.Stores{}, app.Options{
		Admin:           "0xadmin",
		EntropyInterval: time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	token := ledger.NewFungible("TIX")
	application.Ledger.RegisterFungible("0xticket", token)

	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	return srv, application, token
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, decoded
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	srv, application, token := newTestServer(t)
	custody := application.Ledger.Custody()

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/games", map[string]any{
		"creator":            "0xcreator",
		"ticket_token":       "0xticket",
		"fee_address":        "0xfees",
		"fee_percent":        50,
		"ticket_price":       "1000",
		"max_players":        10,
		"max_tickets_player": 5,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create game: status %d body %v", resp.StatusCode, created)
	}
	gameNumber := fmt.Sprintf("%.0f", created["game_number"].(float64))

	for _, player := range []string{"0xalice", "0xbob"} {
		token.Mint(game.Address(player), big.NewInt(10_000))
		token.Approve(game.Address(player), custody, big.NewInt(10_000))
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/games/"+gameNumber+"/tickets", map[string]any{
			"player": player,
			"count":  2,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("buy tickets: status %d body %v", resp.StatusCode, body)
		}
	}

	resp, state := doJSON(t, http.MethodGet, srv.URL+"/games/"+gameNumber+"/players/0xalice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("player state: status %d", resp.StatusCode)
	}
	if state["ticket_count"].(float64) != 2 {
		t.Fatalf("unexpected player state: %v", state)
	}

	resp, active := doJSON(t, http.MethodGet, srv.URL+"/games", nil)
	if resp.StatusCode != http.StatusOK || len(active["active"].([]any)) != 1 {
		t.Fatalf("active games: status %d body %v", resp.StatusCode, active)
	}

	resp, ended := doJSON(t, http.MethodPost, srv.URL+"/games/"+gameNumber+"/end", map[string]any{
		"caller": "0xadmin",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end game: status %d body %v", resp.StatusCode, ended)
	}
	if ended["winner"] == "" {
		t.Fatalf("no winner reported: %v", ended)
	}

	resp, stats := doJSON(t, http.MethodGet, srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d", resp.StatusCode)
	}
	if stats["total_games"].(float64) != 1 || stats["total_games_ended"].(float64) != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	resp, history := doJSON(t, http.MethodGet, srv.URL+"/games/"+gameNumber+"/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events: status %d", resp.StatusCode)
	}
	if len(history["events"].([]any)) == 0 {
		t.Fatalf("no events recorded: %v", history)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/games/404", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown game: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/games", map[string]any{
		"creator":      "0xcreator",
		"ticket_token": "0xticket",
		"ticket_price": "0",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid params: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/admin/treasury", map[string]any{
		"caller":   "0xrando",
		"treasury": "0xvault",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthorized treasury change: status %d", resp.StatusCode)
	}
}

func TestTreasuryEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/admin/treasury", map[string]any{
		"caller":   "0xadmin",
		"treasury": "0xvault",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set treasury: status %d body %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/admin/treasury", nil)
	if resp.StatusCode != http.StatusOK || body["treasury"] != "0xvault" {
		t.Fatalf("get treasury: status %d body %v", resp.StatusCode, body)
	}
}

func TestOracleFeedEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/oracle/feed", map[string]any{"seed": 42})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("feed: status %d", resp.StatusCode)
	}
}

func TestWrapWithAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := WrapWithAuth(inner, []string{"secret"}, rate.Limit(1000), 1000)
	srv := httptest.NewServer(wrapped)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/games")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read without token: status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/games", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("write without token: status %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/games", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("write with token: status %d", resp.StatusCode)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := WrapWithAuth(inner, nil, rate.Limit(1), 1)
	srv := httptest.NewServer(wrapped)
	defer srv.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/games", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatal("burst of writes never rate limited")
	}
}
