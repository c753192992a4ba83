package sessions

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
)

// Finish ends a created or live session on the host's request, refunding
// stakes that were taken but not yet resolved.
func (s *Service) Finish(ctx context.Context, id, hostToken string) (View, error) {
	var out View

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sess, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}

		err = requireHost(sess.rec, hostToken)
		if err != nil {
			return err
		}

		if sess.rec.Status == string(game.StatusFinished) {
			return apperr.New(apperr.CodeInvalidState, "session is already finished")
		}

		next, refunds := sess.variant.Abort(sess.state)

		applied, err := s.transfer(ctx, tx, sess.rec, refunds)
		if err != nil {
			return err
		}

		sess.state = next

		_, err = s.commit(ctx, tx, sess, eventlog.TypeSessionFinished, map[string]any{
			"result":        game.OutcomeOf(next).Result,
			"transfers":     applied,
			"auto_finished": false,
			"view":          sess.variant.View(next, game.RolePlayer),
		})
		if err != nil {
			return err
		}

		out = s.view(sess, string(game.RoleHost))

		return nil
	})
	if err != nil {
		return View{}, err
	}

	slog.Info("session finished", "session_id", out.ID, "result", out.Result, "seq", out.Seq)

	return out, nil
}
