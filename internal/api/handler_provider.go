package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/services/feed"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
	"github.com/fastprodman/tablestakes/internal/services/sessions"
)

const (
	headerSessionToken = "X-Session-Token"
	headerExpectedSeq  = "X-Expected-Seq"
	maxBodyBytes       = 1 << 20
)

// HandlerProvider exposes the session, feed and wallet services over HTTP.
type HandlerProvider struct {
	sessions   *sessions.Service
	feed       *feed.Feed
	ledger     *ledger.Service
	adminToken string
}

// NewHandler returns a new Handler provider. An empty adminToken disables
// the wallet delta endpoint.
func NewHandler(s *sessions.Service, f *feed.Feed, l *ledger.Service, adminToken string) *HandlerProvider {
	return &HandlerProvider{sessions: s, feed: f, ledger: l, adminToken: adminToken}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code apperr.Code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": string(code)})
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeUnauthorized:      http.StatusUnauthorized,
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeInvalidState:      http.StatusConflict,
	apperr.CodeInvalidAction:     http.StatusUnprocessableEntity,
	apperr.CodeInsufficientFunds: http.StatusConflict,
	apperr.CodeDuplicate:         http.StatusConflict,
	apperr.CodeConflict:          http.StatusConflict,
	apperr.CodeInvalidArgument:   http.StatusBadRequest,
}

// writeAppError maps coded errors to their status; anything else is a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status, ok := statusByCode[appErr.Code]
		if ok {
			writeError(w, status, appErr.Code, appErr.Error())
			return
		}
	}

	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, apperr.CodeInvalidArgument, msg)
}

// decodeBody reads a JSON body into dst, rejecting unknown fields. An empty
// body leaves dst untouched when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}

			return errors.New("empty body")
		}

		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

func sessionToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(headerSessionToken))
}

func parseExpectedSeq(h http.Header) (*int64, error) {
	raw := strings.TrimSpace(h.Get(headerExpectedSeq))
	if raw == "" {
		return nil, nil
	}

	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return nil, fmt.Errorf("invalid %s", headerExpectedSeq)
	}

	return &seq, nil
}

// parseSince reads ?since=; absent means fallback.
func parseSince(r *http.Request, fallback int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("since"))
	if raw == "" {
		return fallback, nil
	}

	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		return 0, errors.New("since must be a non-negative integer")
	}

	return since, nil
}

// parseLastEventID reads the SSE reconnect header; stream frame ids are seqs.
func parseLastEventID(r *http.Request, fallback int64) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		return fallback, nil
	}

	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		return 0, errors.New("invalid Last-Event-ID header")
	}

	return since, nil
}
