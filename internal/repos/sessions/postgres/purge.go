package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (r *sessionsRepo) DeleteFinishedBefore(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		DELETE FROM sessions
		WHERE status = 'finished'
		  AND finished_at < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete finished sessions: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan purged id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate purged ids: %w", err)
	}

	return ids, nil
}
