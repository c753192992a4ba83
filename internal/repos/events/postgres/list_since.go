package events

import (
	"context"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/repos/events"
)

func (r *eventsRepo) ListSince(ctx context.Context, sessionID string, since int64, limit int) ([]events.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, seq, type, data, created_at
		FROM session_events
		WHERE session_id = $1
		  AND seq > $2
		ORDER BY seq
		LIMIT $3
	`, sessionID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event

	for rows.Next() {
		var (
			ev   events.Event
			data []byte
		)

		err = rows.Scan(&ev.SessionID, &ev.Seq, &ev.Type, &data, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Data = data
		out = append(out, ev)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return out, nil
}
