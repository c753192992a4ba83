package sessions

import (
	"context"
	"database/sql"

	"github.com/fastprodman/tablestakes/internal/repos/sessions"
)

// LockByID takes the session row lock; it serializes every mutation of one session.
func (r *sessionsRepo) LockByID(ctx context.Context, tx *sql.Tx, id string) (sessions.Record, error) {
	return scanRecord(tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM sessions
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *sessionsRepo) LockByJoinCode(ctx context.Context, tx *sql.Tx, code string) (sessions.Record, error) {
	return scanRecord(tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM sessions
		WHERE join_code = $1
		FOR UPDATE
	`, code))
}
