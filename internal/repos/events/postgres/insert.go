package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/infra/pgutils"
	"github.com/fastprodman/tablestakes/internal/repos/events"
)

func (r *eventsRepo) Insert(ctx context.Context, tx *sql.Tx, ev events.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_events (session_id, seq, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.SessionID, ev.Seq, ev.Type, string(ev.Data), ev.CreatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return events.ErrSeqTaken
		}

		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}
