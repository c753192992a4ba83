package api

import (
	"encoding/json"
	"net/http"

	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/sessions"
	"github.com/go-chi/chi/v5"
)

type createRequest struct {
	GameKind   string `json:"game_kind"`
	Stake      string `json:"stake"`
	Currency   string `json:"currency"`
	DeckRef    string `json:"deck_ref"`
	HostUserID string `json:"host_user_id"`
}

type joinRequest struct {
	UserID string `json:"user_id"`
}

// CreateSessionHandler handles POST /sessions
func (h *HandlerProvider) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createRequest

	err := decodeBody(w, r, &req, false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var stake int64
	if req.Stake != "" {
		stake, err = parseMinor(req.Stake)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	created, err := h.sessions.Create(r.Context(), sessions.CreateRequest{
		GameKind:   game.Kind(req.GameKind),
		Stake:      stake,
		Currency:   req.Currency,
		DeckRef:    req.DeckRef,
		HostUserID: req.HostUserID,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// JoinHandler handles POST /join/{code}
func (h *HandlerProvider) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest

	err := decodeBody(w, r, &req, false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	joined, err := h.sessions.Join(r.Context(), chi.URLParam(r, "code"), req.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, joined)
}

// GetSessionHandler handles GET /sessions/{id}
func (h *HandlerProvider) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"), sessionToken(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// StartHandler handles POST /sessions/{id}/start
func (h *HandlerProvider) StartHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Start(r.Context(), chi.URLParam(r, "id"), sessionToken(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ActionHandler handles POST /sessions/{id}/actions/{name}. The body, if
// any, is the action payload.
func (h *HandlerProvider) ActionHandler(w http.ResponseWriter, r *http.Request) {
	expected, err := parseExpectedSeq(r.Header)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var payload json.RawMessage

	err = decodeBody(w, r, &payload, true)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := h.sessions.Action(r.Context(), sessions.ActionRequest{
		SessionID:   chi.URLParam(r, "id"),
		Token:       sessionToken(r),
		Name:        chi.URLParam(r, "name"),
		Payload:     payload,
		ExpectedSeq: expected,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// FinishHandler handles POST /sessions/{id}/finish
func (h *HandlerProvider) FinishHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Finish(r.Context(), chi.URLParam(r, "id"), sessionToken(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
