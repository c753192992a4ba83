package sessions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/repos/sessions"
)

func (r *sessionsRepo) Update(ctx context.Context, tx *sql.Tx, rec sessions.Record, expectedVersion int64) error {
	players, err := sessions.EncodePlayers(rec.Players)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET players = $3,
		    status = $4,
		    state = $5,
		    version = $6,
		    updated_at = $7,
		    started_at = $8,
		    finished_at = $9
		WHERE id = $1
		  AND version = $2
	`, rec.ID, expectedVersion, players, rec.Status, string(rec.State), rec.Version,
		rec.UpdatedAt, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return sessions.ErrVersionMismatch
	}

	return nil
}
