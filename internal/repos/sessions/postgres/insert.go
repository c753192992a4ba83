package sessions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/infra/pgutils"
	"github.com/fastprodman/tablestakes/internal/repos/sessions"
)

func (r *sessionsRepo) Insert(ctx context.Context, tx *sql.Tx, rec sessions.Record) error {
	players, err := sessions.EncodePlayers(rec.Players)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		rec.ID, rec.JoinCode, rec.HostToken, rec.HostUserID, players, rec.GameKind,
		rec.Currency, rec.Stake, rec.DeckRef, rec.Status, string(rec.State), rec.Seed,
		rec.Version, rec.CreatedAt, rec.UpdatedAt, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return sessions.ErrJoinCodeTaken
		}

		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}
