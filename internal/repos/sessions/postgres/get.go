package sessions

import (
	"context"

	"github.com/fastprodman/tablestakes/internal/repos/sessions"
)

func (r *sessionsRepo) Get(ctx context.Context, id string) (sessions.Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM sessions
		WHERE id = $1
	`, id))
}
