package events

import (
	"context"
	"database/sql"
	"fmt"
)

func (r *eventsRepo) DeleteBySession(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}

	return nil
}
