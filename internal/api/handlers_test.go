package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fastprodman/tablestakes/internal/api"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
	"github.com/fastprodman/tablestakes/internal/services/feed"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
	"github.com/fastprodman/tablestakes/internal/services/sessions"
	"github.com/fastprodman/tablestakes/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "s3cret"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	b := storagetest.SQLite(t)
	led := ledger.New(b.DB, b.Wallets)
	log := eventlog.New(b.Events)
	svc := sessions.New(b.DB, b.Sessions, log, led, game.NewRegistry(game.Config{}), sessions.Config{})
	fd := feed.New(svc, log, feed.Config{PollInterval: 10 * time.Millisecond, IdleBudget: 100 * time.Millisecond})

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc, fd, led, adminToken)))
	t.Cleanup(srv.Close)

	return srv
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func (c client) do(method, path string, headers map[string]string, body any) (int, map[string]any) {
	c.t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(c.t.Context(), method, c.srv.URL+path, rdr)
	require.NoError(c.t, err)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func (c client) fund(user, amount string) {
	c.t.Helper()

	status, body := c.do(http.MethodPost, "/wallets/coins/"+user+"/deltas",
		map[string]string{"Authorization": "Bearer " + adminToken},
		map[string]any{"amount": amount, "reason": "topup:" + user})
	require.Equal(c.t, http.StatusOK, status, body)
}

func token(tok string) map[string]string {
	return map[string]string{"X-Session-Token": tok}
}

// openSlots creates and starts a slots table for alice.
func (c client) openSlots() (id, host, player string) {
	c.t.Helper()

	status, created := c.do(http.MethodPost, "/sessions", nil, map[string]any{
		"game_kind": "slots", "stake": "1.50", "currency": "coins", "host_user_id": "host",
	})
	require.Equal(c.t, http.StatusCreated, status, created)

	host = created["host_token"].(string)
	id = created["session"].(map[string]any)["id"].(string)

	status, joined := c.do(http.MethodPost, "/join/"+created["join_code"].(string), nil, map[string]any{"user_id": "alice"})
	require.Equal(c.t, http.StatusOK, status, joined)

	player = joined["player_token"].(string)

	status, started := c.do(http.MethodPost, "/sessions/"+id+"/start", token(host), nil)
	require.Equal(c.t, http.StatusOK, status, started)

	return id, host, player
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJoinSeatedUserConflicts(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}

	status, created := c.do(http.MethodPost, "/sessions", nil, map[string]any{
		"game_kind": "craps", "stake": "1", "currency": "coins", "host_user_id": "host",
	})
	require.Equal(t, http.StatusCreated, status, created)

	path := "/join/" + created["join_code"].(string)

	status, joined := c.do(http.MethodPost, path, nil, map[string]any{"user_id": "alice"})
	require.Equal(t, http.StatusOK, status, joined)

	status, body := c.do(http.MethodPost, path, nil, map[string]any{"user_id": "alice"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate", body["code"])
	assert.NotContains(t, body, "player_token")
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}
	c.fund("alice", "20")

	id, host, player := c.openSlots()

	status, body := c.do(http.MethodPost, "/sessions/"+id+"/actions/spin", token(player), map[string]string{"nonce": "n1"})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 4, body["seq"])

	status, body = c.do(http.MethodPost, "/sessions/"+id+"/actions/spin", token(player), map[string]string{"nonce": "n1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate", body["code"])

	status, body = c.do(http.MethodGet, "/sessions/"+id+"/events?since=2", token(host), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["events"], 2)
	assert.EqualValues(t, 4, body["cursor"])

	status, body = c.do(http.MethodGet, "/sessions/"+id, token(player), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "player", body["role"])
	assert.Equal(t, "live", body["status"])

	status, body = c.do(http.MethodPost, "/sessions/"+id+"/finish", token(host), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "finished", body["status"])

	status, body = c.do(http.MethodGet, "/wallets/coins/alice/history?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["entries"], 1)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}
	c.fund("alice", "20")

	id, host, player := c.openSlots()

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		body    any
		status  int
		code    string
	}{
		{"unknown_session", http.MethodGet, "/sessions/nope", nil, nil, http.StatusNotFound, "not_found"},
		{"forged_token", http.MethodGet, "/sessions/" + id, token("forged"), nil, http.StatusUnauthorized, "unauthorized"},
		{"host_spins", http.MethodPost, "/sessions/" + id + "/actions/spin", token(host), map[string]string{"nonce": "x"}, http.StatusUnauthorized, "unauthorized"},
		{"unknown_action", http.MethodPost, "/sessions/" + id + "/actions/dance", token(player), nil, http.StatusUnprocessableEntity, "invalid_action"},
		{"missing_nonce", http.MethodPost, "/sessions/" + id + "/actions/spin", token(player), map[string]string{}, http.StatusUnprocessableEntity, "invalid_action"},
		{"restart", http.MethodPost, "/sessions/" + id + "/start", token(host), nil, http.StatusConflict, "invalid_state"},
		{"bad_kind", http.MethodPost, "/sessions", nil, map[string]any{"game_kind": "go", "currency": "coins", "host_user_id": "h"}, http.StatusBadRequest, "invalid_argument"},
		{"bad_stake", http.MethodPost, "/sessions", nil, map[string]any{"game_kind": "poker", "stake": "1.001", "currency": "coins", "host_user_id": "h"}, http.StatusBadRequest, "invalid_argument"},
		{"stale_seq", http.MethodPost, "/sessions/" + id + "/actions/spin", map[string]string{"X-Session-Token": player, "X-Expected-Seq": "1"}, map[string]string{"nonce": "y"}, http.StatusConflict, "conflict"},
		{"bad_since", http.MethodGet, "/sessions/" + id + "/events?since=-4", nil, nil, http.StatusBadRequest, "invalid_argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := client{t: t, srv: c.srv}

			status, body := c.do(tt.method, tt.path, tt.headers, tt.body)
			assert.Equal(t, tt.status, status, body)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestInsufficientFundsOnSpin(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}
	c.fund("alice", "1.00")

	id, _, player := c.openSlots()

	status, body := c.do(http.MethodPost, "/sessions/"+id+"/actions/spin", token(player), map[string]string{"nonce": "n1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient_funds", body["code"])

	_, wallet := c.do(http.MethodGet, "/wallets/coins/alice", nil, nil)
	assert.Equal(t, "1.00", wallet["balance"])
}

func TestApplyDeltaNeedsAdmin(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}

	status, _ := c.do(http.MethodPost, "/wallets/coins/bob/deltas", nil, map[string]any{"amount": "5", "reason": "r"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.do(http.MethodPost, "/wallets/coins/bob/deltas",
		map[string]string{"Authorization": "Bearer wrong"}, map[string]any{"amount": "5", "reason": "r"})
	assert.Equal(t, http.StatusUnauthorized, status)

	admin := map[string]string{"Authorization": "Bearer " + adminToken}

	status, body := c.do(http.MethodPost, "/wallets/coins/bob/deltas", admin, map[string]any{"amount": "-5", "reason": "r1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient", body["status"])

	status, body = c.do(http.MethodPost, "/wallets/coins/bob/deltas", admin, map[string]any{"amount": "5.25", "reason": "r2"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "5.25", body["balance"])

	status, body = c.do(http.MethodPost, "/wallets/coins/bob/deltas", admin, map[string]any{"amount": "5.25", "reason": "r2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate", body["status"])

	_, wallet := c.do(http.MethodGet, "/wallets/coins/bob", nil, nil)
	assert.EqualValues(t, 525, wallet["balance_minor"])
}

func TestStream(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}
	c.fund("alice", "20")

	id, host, _ := c.openSlots()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, c.srv.URL+"/sessions/"+id+"/stream?since=1", nil)
	require.NoError(t, err)
	req.Header.Set("X-Session-Token", host)

	resp, err := c.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var kinds []string

	// the idle budget closes the stream after the replay
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if kind, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			kinds = append(kinds, kind)
		}
	}

	assert.Equal(t, []string{feed.TypeSnapshot, eventlog.TypePlayerJoined, eventlog.TypeSessionStarted}, kinds)
}

func TestStreamResumesFromLastEventID(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}
	c.fund("alice", "20")

	id, host, _ := c.openSlots()

	stream := func(query, lastID string) (int, []string) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, c.srv.URL+"/sessions/"+id+"/stream"+query, nil)
		require.NoError(t, err)
		req.Header.Set("X-Session-Token", host)
		req.Header.Set("Last-Event-ID", lastID)

		resp, err := c.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var kinds []string

		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if kind, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				kinds = append(kinds, kind)
			}
		}

		return resp.StatusCode, kinds
	}

	status, kinds := stream("", "2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{feed.TypeSnapshot, eventlog.TypeSessionStarted}, kinds)

	status, kinds = stream("?since=1", "2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{feed.TypeSnapshot, eventlog.TypePlayerJoined, eventlog.TypeSessionStarted}, kinds, "query wins over the header")

	status, _ = stream("", "abc")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStreamUnknownSession(t *testing.T) {
	t.Parallel()

	c := client{t: t, srv: newServer(t)}

	status, body := c.do(http.MethodGet, "/sessions/nope/stream", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
}
