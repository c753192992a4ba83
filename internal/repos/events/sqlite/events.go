package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/infra/sqliteutil"
	"github.com/fastprodman/tablestakes/internal/repos/events"
)

var _ events.Events = (*eventsRepo)(nil)

type eventsRepo struct{ db *sql.DB }

func New(db *sql.DB) *eventsRepo {
	return &eventsRepo{db: db}
}

func (r *eventsRepo) Insert(ctx context.Context, tx *sql.Tx, ev events.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_events (session_id, seq, type, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.SessionID, ev.Seq, ev.Type, string(ev.Data), sqliteutil.ToMillis(ev.CreatedAt))
	if err != nil {
		if sqliteutil.IsConstraintError(err) {
			return events.ErrSeqTaken
		}

		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

func (r *eventsRepo) LastSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	var seq int64

	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM session_events WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}

	return seq, nil
}

func (r *eventsRepo) ListSince(ctx context.Context, sessionID string, since int64, limit int) ([]events.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, seq, type, data, created_at
		FROM session_events
		WHERE session_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?
	`, sessionID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event

	for rows.Next() {
		var (
			ev        events.Event
			data      string
			createdAt int64
		)

		err = rows.Scan(&ev.SessionID, &ev.Seq, &ev.Type, &data, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Data = []byte(data)
		ev.CreatedAt = sqliteutil.FromMillis(createdAt)
		out = append(out, ev)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return out, nil
}

func (r *eventsRepo) DeleteBySession(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}

	return nil
}
