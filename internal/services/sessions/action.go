package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
)

// Action runs one game action in a single transaction:
//
// 1) Lock the session and authorize the token for the action's role.
// 2) Validate the action and debit the stakes it needs.
// 3) Apply the rules and credit any payouts.
// 4) Finish the session if a resolving action left a wallet empty.
// 5) Persist the state and append action.<name>.
//
// Any failure rolls back every step, debits included.
func (s *Service) Action(ctx context.Context, req ActionRequest) (ActionResult, error) {
	var out ActionResult

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sess, err := s.lock(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}

		role, actor, err := roleOf(sess.rec, req.Token)
		if err != nil {
			return err
		}

		rule, ok := sess.variant.Rule(req.Name)
		if !ok {
			return apperr.New(apperr.CodeInvalidAction, fmt.Sprintf("unknown action %q for %s", req.Name, sess.rec.GameKind))
		}

		if rule.Role != role {
			return apperr.New(apperr.CodeUnauthorized, fmt.Sprintf("%s requires the %s token", req.Name, rule.Role))
		}

		if sess.rec.Status != string(game.StatusLive) {
			return apperr.New(apperr.CodeInvalidState, "session is "+sess.rec.Status)
		}

		if req.ExpectedSeq != nil && *req.ExpectedSeq != sess.rec.Version {
			return apperr.New(apperr.CodeConflict,
				fmt.Sprintf("expected seq %d, session is at %d", *req.ExpectedSeq, sess.rec.Version))
		}

		act := game.Action{Name: req.Name, Actor: actor, Role: role, Payload: req.Payload}

		stakes, err := sess.variant.Stakes(sess.state, act)
		if err != nil {
			return err
		}

		debited, err := s.transfer(ctx, tx, sess.rec, stakes)
		if err != nil {
			return err
		}

		rng := game.NewRNG(sess.rec.Seed, sess.rec.ID, sess.rec.Version+1)

		next, err := sess.variant.Apply(sess.state, act, rng)
		if err != nil {
			return err
		}

		payouts := sess.variant.Payouts(next, act)

		credited, err := s.transfer(ctx, tx, sess.rec, payouts)
		if err != nil {
			return err
		}

		sess.state = next
		applied := append(debited, credited...)

		autoFinished := false
		if rule.Resolves && game.OutcomeOf(next).Status == game.StatusLive {
			exhausted, err := s.anyExhausted(ctx, tx, sess.rec.Currency, involved(stakes, payouts))
			if err != nil {
				return err
			}

			if exhausted {
				var refunds []game.Transfer

				sess.state, refunds = sess.variant.Abort(sess.state)

				refunded, err := s.transfer(ctx, tx, sess.rec, refunds)
				if err != nil {
					return err
				}

				applied = append(applied, refunded...)
				autoFinished = true
			}
		}

		out.Seq, err = s.commit(ctx, tx, sess, eventlog.ActionType(req.Name), map[string]any{
			"actor":         actor,
			"role":          role,
			"payload":       req.Payload,
			"transfers":     applied,
			"status":        game.OutcomeOf(sess.state).Status,
			"result":        game.OutcomeOf(sess.state).Result,
			"auto_finished": autoFinished,
			"view":          sess.variant.View(sess.state, game.RolePlayer),
		})
		if err != nil {
			return err
		}

		out.Session = s.view(sess, string(role))
		out.Transfers = applied

		if autoFinished {
			slog.Info("session auto-finished on empty wallet", logAttrs(sess.rec)...)
		}

		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}

	slog.Debug("action applied", "session_id", req.SessionID, "action", req.Name, "seq", out.Seq)

	return out, nil
}

// anyExhausted reports whether any of users has a zero balance.
func (s *Service) anyExhausted(ctx context.Context, tx *sql.Tx, scope string, users []string) (bool, error) {
	for _, u := range users {
		balance, err := s.ledger.BalanceTx(ctx, tx, scope, u)
		if err != nil {
			return false, fmt.Errorf("balance of %s: %w", u, err)
		}

		if balance == 0 {
			return true, nil
		}
	}

	return false, nil
}

// involved lists the distinct users touched by transfers, in order.
func involved(groups ...[]game.Transfer) []string {
	seen := make(map[string]bool)

	var users []string

	for _, g := range groups {
		for _, t := range g {
			if seen[t.UserID] {
				continue
			}

			seen[t.UserID] = true
			users = append(users, t.UserID)
		}
	}

	return users
}
