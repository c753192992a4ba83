package events

import (
	"context"
	"database/sql"
	"fmt"
)

func (r *eventsRepo) LastSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	var seq int64

	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0)
		FROM session_events
		WHERE session_id = $1
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}

	return seq, nil
}
