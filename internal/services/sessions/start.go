package sessions

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
)

// Start moves a session from created to live. Stakes the variant takes at
// start are debited before the deal; a failed debit leaves the session
// untouched.
func (s *Service) Start(ctx context.Context, id, hostToken string) (View, error) {
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

		if sess.rec.Status != string(game.StatusCreated) {
			return apperr.New(apperr.CodeInvalidState, "session is "+sess.rec.Status)
		}

		if len(sess.rec.Players) == 0 {
			return apperr.New(apperr.CodeInvalidState, "no player has joined")
		}

		seats := make([]string, 0, len(sess.rec.Players))
		for _, p := range sess.rec.Players {
			seats = append(seats, p.UserID)
		}

		stakes, err := sess.variant.Stakes(sess.state, game.Action{
			Name:  game.ActionStart,
			Actor: seats[0],
			Role:  game.RoleHost,
		})
		if err != nil {
			return err
		}

		applied, err := s.transfer(ctx, tx, sess.rec, stakes)
		if err != nil {
			return err
		}

		rng := game.NewRNG(sess.rec.Seed, sess.rec.ID, sess.rec.Version+1)

		sess.state, err = sess.variant.Start(sess.state, seats, rng)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		sess.rec.StartedAt = &now

		_, err = s.commit(ctx, tx, sess, eventlog.TypeSessionStarted, map[string]any{
			"seats":     seats,
			"transfers": applied,
			"view":      sess.variant.View(sess.state, game.RolePlayer),
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

	slog.Info("session started", "session_id", out.ID, "game_kind", out.GameKind, "seq", out.Seq)

	return out, nil
}
