//go:build e2e

// Package e2etests drives a running API on localhost:8080. Wallets are
// funded through the admin endpoint, so the server must share E2E_ADMIN_TOKEN
// as its ADMIN_TOKEN.
package e2etests

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const (
	baseURL   = "http://localhost:8080"
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

func TestE2E_SlotsSession(t *testing.T) {
	waitUntilReady(t)

	player := uniqID("e2e-player")
	fund(t, player, "10.00")

	code, created := call(t, http.MethodPost, "/sessions", nil, map[string]string{
		"game_kind":    "slots",
		"stake":        "2.50",
		"currency":     "coins",
		"host_user_id": uniqID("e2e-host"),
	})
	if code != http.StatusCreated {
		t.Fatalf("create: want 201, got %d (%v)", code, created)
	}

	hostToken := created["host_token"].(string)
	sessionID := created["session"].(map[string]any)["id"].(string)

	code, joined := call(t, http.MethodPost, "/join/"+created["join_code"].(string), nil, map[string]string{"user_id": player})
	if code != http.StatusOK {
		t.Fatalf("join: want 200, got %d (%v)", code, joined)
	}

	playerToken := joined["player_token"].(string)

	code, body := call(t, http.MethodPost, "/sessions/"+sessionID+"/start", hostToken, nil)
	if code != http.StatusOK {
		t.Fatalf("start: want 200, got %d (%v)", code, body)
	}

	t.Run("spin_debits_stake_once", func(t *testing.T) {
		nonce := map[string]string{"nonce": uniqID("spin")}

		code, body := call(t, http.MethodPost, "/sessions/"+sessionID+"/actions/spin", playerToken, nonce)
		if code != http.StatusOK {
			t.Fatalf("spin: want 200, got %d (%v)", code, body)
		}

		after := balance(t, player)

		code, _ = call(t, http.MethodPost, "/sessions/"+sessionID+"/actions/spin", playerToken, nonce)
		if code != http.StatusConflict {
			t.Fatalf("replayed spin: want 409, got %d", code)
		}

		if got := balance(t, player); got != after {
			t.Fatalf("replayed spin moved the balance: %s -> %s", after, got)
		}
	})

	t.Run("host_cannot_spin", func(t *testing.T) {
		code, _ := call(t, http.MethodPost, "/sessions/"+sessionID+"/actions/spin", hostToken, map[string]string{"nonce": uniqID("host")})
		if code != http.StatusUnauthorized {
			t.Fatalf("host spin: want 401, got %d", code)
		}
	})

	t.Run("stream_replays_log", func(t *testing.T) {
		kinds := streamKinds(t, sessionID, hostToken, 0, 3)
		want := []string{"snapshot", "session.created", "player.joined"}

		for i := range want {
			if kinds[i] != want[i] {
				t.Fatalf("stream frames: want %v, got %v", want, kinds)
			}
		}
	})

	t.Run("finish", func(t *testing.T) {
		code, body := call(t, http.MethodPost, "/sessions/"+sessionID+"/finish", hostToken, nil)
		if code != http.StatusOK {
			t.Fatalf("finish: want 200, got %d (%v)", code, body)
		}

		if body["status"] != "finished" {
			t.Fatalf("finish: want finished, got %v", body["status"])
		}
	})
}

func TestE2E_Validation(t *testing.T) {
	waitUntilReady(t)

	t.Run("unknown_game_kind", func(t *testing.T) {
		code, _ := call(t, http.MethodPost, "/sessions", nil, map[string]string{
			"game_kind": "roulette", "currency": "coins", "host_user_id": "h",
		})
		if code != http.StatusBadRequest {
			t.Fatalf("unknown kind: want 400, got %d", code)
		}
	})

	t.Run("stake_precision", func(t *testing.T) {
		code, _ := call(t, http.MethodPost, "/sessions", nil, map[string]string{
			"game_kind": "poker", "stake": "1.234", "currency": "coins", "host_user_id": "h",
		})
		if code != http.StatusBadRequest {
			t.Fatalf("bad stake precision: want 400, got %d", code)
		}
	})

	t.Run("unknown_join_code", func(t *testing.T) {
		code, _ := call(t, http.MethodPost, "/join/NOPENOPE00", nil, map[string]string{"user_id": "u"})
		if code != http.StatusNotFound {
			t.Fatalf("unknown code: want 404, got %d", code)
		}
	})

	t.Run("overdraft_refused", func(t *testing.T) {
		user := uniqID("e2e-broke")

		code, body := callAdmin(t, user, "-1.00", uniqID("overdraft"))
		if code != http.StatusConflict {
			t.Fatalf("overdraft: want 409, got %d (%v)", code, body)
		}

		if got := balance(t, user); got != "0.00" {
			t.Fatalf("after overdraft: want 0.00, got %s", got)
		}
	})
}

/* -------------------- helpers -------------------- */

func call(t *testing.T, method, path string, token any, body any) (int, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if tok, ok := token.(string); ok {
		req.Header.Set("X-Session-Token", tok)
	}

	return do(t, req)
}

func callAdmin(t *testing.T, user, amount, reason string) (int, map[string]any) {
	t.Helper()

	data, err := json.Marshal(map[string]string{"amount": amount, "reason": reason})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/wallets/coins/"+user+"/deltas", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+os.Getenv("E2E_ADMIN_TOKEN"))

	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any

	err = json.NewDecoder(resp.Body).Decode(&out)
	if err != nil {
		t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
	}

	return resp.StatusCode, out
}

func fund(t *testing.T, user, amount string) {
	t.Helper()

	if os.Getenv("E2E_ADMIN_TOKEN") == "" {
		t.Skip("E2E_ADMIN_TOKEN is not set")
	}

	code, body := callAdmin(t, user, amount, uniqID("e2e-topup"))
	if code != http.StatusOK {
		t.Fatalf("fund %s: want 200, got %d (%v)", user, code, body)
	}
}

func balance(t *testing.T, user string) string {
	t.Helper()

	code, body := call(t, http.MethodGet, "/wallets/coins/"+user, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("balance: want 200, got %d (%v)", code, body)
	}

	return body["balance"].(string)
}

// streamKinds reads the first n event names off the SSE stream.
func streamKinds(t *testing.T, sessionID, token string, since, n int) []string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	u := fmt.Sprintf("%s/sessions/%s/stream?since=%d", baseURL, sessionID, since)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	req.Header.Set("X-Session-Token", token)

	// the client timeout would cut the stream
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	var kinds []string

	sc := bufio.NewScanner(resp.Body)
	for len(kinds) < n && sc.Scan() {
		if kind, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			kinds = append(kinds, kind)
		}
	}

	if len(kinds) < n {
		t.Fatalf("stream: want %d frames, got %v (%v)", n, kinds, sc.Err())
	}

	return kinds
}

// waitUntilReady polls /healthz until the API answers or waitReady passes.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", baseURL, waitReady)
		case <-tick.C:
			resp, err := httpClient.Get(baseURL + "/healthz")
			if err != nil {
				continue
			}

			_ = resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func uniqID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
