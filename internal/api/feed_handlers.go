package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastprodman/tablestakes/internal/repos/events"
	"github.com/fastprodman/tablestakes/internal/services/feed"
	"github.com/go-chi/chi/v5"
)

type eventsResponse struct {
	Events []events.Event `json:"events"`
	Cursor int64          `json:"cursor"`
}

// EventsHandler handles GET /sessions/{id}/events?since=
func (h *HandlerProvider) EventsHandler(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r, 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	evs, err := h.feed.Since(r.Context(), chi.URLParam(r, "id"), sessionToken(r), since)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := eventsResponse{Events: evs, Cursor: since}
	if resp.Events == nil {
		resp.Events = []events.Event{}
	}

	if n := len(evs); n > 0 {
		resp.Cursor = evs[n-1].Seq
	}

	writeJSON(w, http.StatusOK, resp)
}

// StreamHandler handles GET /sessions/{id}/stream?since= as Server-Sent
// Events. Without since a reconnecting client resumes after its
// Last-Event-ID; a fresh one starts at the snapshot's seq.
func (h *HandlerProvider) StreamHandler(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r, -1)
	if err == nil && since < 0 {
		since, err = parseLastEventID(r, -1)
	}

	if err != nil {
		badRequest(w, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	token := sessionToken(r)

	// the snapshot doubles as the auth check, so errors still get a JSON body
	_, err = h.feed.Snapshot(r.Context(), id, token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)

	// streams outlive the server's write timeout
	err = rc.SetWriteDeadline(time.Time{})
	if err != nil {
		slog.Debug("clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err = h.feed.Stream(r.Context(), id, token, since, func(env feed.Envelope) error {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}

		_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", env.Seq, env.Type, data)
		if err != nil {
			return fmt.Errorf("write frame: %w", err)
		}

		return rc.Flush()
	})
	if err != nil {
		slog.Warn("stream closed with error", "session_id", id, "error", err)
	}
}
