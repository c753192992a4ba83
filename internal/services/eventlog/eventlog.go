// Package eventlog appends to and reads the per-session event log.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/repos/events"
)

const (
	TypeSessionCreated  = "session.created"
	TypePlayerJoined    = "player.joined"
	TypeSessionStarted  = "session.started"
	TypeSessionFinished = "session.finished"
	typeActionPrefix    = "action."

	// PageSize bounds one ListSince read.
	PageSize = 200
)

// ActionType names the event appended for a game action.
func ActionType(name string) string {
	return typeActionPrefix + name
}

type Log struct {
	events events.Events
	now    func() time.Time
}

func New(ev events.Events) *Log {
	return &Log{events: ev, now: time.Now}
}

// Append writes the next event of a session inside tx. Callers hold the
// session row lock, so last+1 cannot race; a taken seq still surfaces as
// Conflict.
func (l *Log) Append(ctx context.Context, tx *sql.Tx, sessionID, typ string, data any) (events.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return events.Event{}, fmt.Errorf("encode event data: %w", err)
	}

	last, err := l.events.LastSeq(ctx, tx, sessionID)
	if err != nil {
		return events.Event{}, fmt.Errorf("last seq: %w", err)
	}

	ev := events.Event{
		SessionID: sessionID,
		Seq:       last + 1,
		Type:      typ,
		Data:      raw,
		CreatedAt: l.now().UTC(),
	}

	err = l.events.Insert(ctx, tx, ev)
	if err != nil {
		if errors.Is(err, events.ErrSeqTaken) {
			return events.Event{}, apperr.Wrap(apperr.CodeConflict, "concurrent append", err)
		}

		return events.Event{}, fmt.Errorf("insert event: %w", err)
	}

	return ev, nil
}

// ListSince returns every event with seq > since, in order. The store is
// read PageSize events at a time until a short page.
func (l *Log) ListSince(ctx context.Context, sessionID string, since int64) ([]events.Event, error) {
	if since < 0 {
		since = 0
	}

	var out []events.Event

	for {
		page, err := l.events.ListSince(ctx, sessionID, since, PageSize)
		if err != nil {
			return nil, fmt.Errorf("list events after %d: %w", since, err)
		}

		out = append(out, page...)

		if len(page) < PageSize {
			return out, nil
		}

		since = page[len(page)-1].Seq
	}
}

// Purge drops the log of a session.
func (l *Log) Purge(ctx context.Context, tx *sql.Tx, sessionID string) error {
	err := l.events.DeleteBySession(ctx, tx, sessionID)
	if err != nil {
		return fmt.Errorf("purge events: %w", err)
	}

	return nil
}
