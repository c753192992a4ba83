package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
	"github.com/go-chi/chi/v5"
)

type deltaRequest struct {
	Amount        string         `json:"amount"`
	Reason        string         `json:"reason"`
	Metadata      map[string]any `json:"metadata"`
	AllowNegative bool           `json:"allow_negative"`
}

type historyEntry struct {
	ID               int64           `json:"id"`
	Delta            string          `json:"delta"`
	ResultingBalance string          `json:"resulting_balance"`
	Reason           string          `json:"reason"`
	Metadata         json.RawMessage `json:"metadata"`
	CreatedAt        time.Time       `json:"created_at"`
}

// GetWalletHandler handles GET /wallets/{scope}/{user}
func (h *HandlerProvider) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	scope, user := chi.URLParam(r, "scope"), chi.URLParam(r, "user")

	bal, err := h.ledger.Balance(r.Context(), scope, user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scope_id":      scope,
		"user_id":       user,
		"balance":       formatMinor(bal),
		"balance_minor": bal,
	})
}

// WalletHistoryHandler handles GET /wallets/{scope}/{user}/history?limit=
func (h *HandlerProvider) WalletHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}

		limit = n
	}

	entries, err := h.ledger.History(r.Context(), chi.URLParam(r, "scope"), chi.URLParam(r, "user"), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:               e.ID,
			Delta:            formatMinor(e.Delta),
			ResultingBalance: formatMinor(e.ResultingBalance),
			Reason:           e.Reason,
			Metadata:         e.Metadata,
			CreatedAt:        e.CreatedAt.UTC(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// ApplyDeltaHandler handles POST /wallets/{scope}/{user}/deltas. It needs
// the admin bearer token.
func (h *HandlerProvider) ApplyDeltaHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		writeError(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "admin token required")
		return
	}

	var req deltaRequest

	err := decodeBody(w, r, &req, false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	amount, err := parseMinor(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := h.ledger.ApplyDelta(r.Context(), ledger.Delta{
		ScopeID:       chi.URLParam(r, "scope"),
		UserID:        chi.URLParam(r, "user"),
		Amount:        amount,
		Reason:        req.Reason,
		Metadata:      req.Metadata,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusConflict
	}

	writeJSON(w, status, map[string]any{
		"ok":            res.OK,
		"status":        res.Status,
		"balance":       formatMinor(res.Balance),
		"balance_minor": res.Balance,
	})
}

func (h *HandlerProvider) isAdmin(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.adminToken)) == 1
}
