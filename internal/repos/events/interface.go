package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrSeqTaken = errors.New("event seq already taken")

// Event is an immutable entry of a session's log. Seq starts at 1.
type Event struct {
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Events is the append-only per-session event store.
type Events interface {
	Insert(ctx context.Context, tx *sql.Tx, ev Event) error
	LastSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error)
	ListSince(ctx context.Context, sessionID string, since int64, limit int) ([]Event, error)
	DeleteBySession(ctx context.Context, tx *sql.Tx, sessionID string) error
}
