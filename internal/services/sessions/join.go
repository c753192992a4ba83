package sessions

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	sessionrepo "github.com/fastprodman/tablestakes/internal/repos/sessions"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
)

// Join seats userID in the session behind joinCode and returns a player
// token. A user already seated is rejected with Duplicate.
func (s *Service) Join(ctx context.Context, joinCode, userID string) (Joined, error) {
	joinCode = strings.TrimSpace(joinCode)
	userID = strings.TrimSpace(userID)

	if joinCode == "" || userID == "" {
		return Joined{}, apperr.New(apperr.CodeInvalidArgument, "join code and user id are required")
	}

	var out Joined

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.sessions.LockByJoinCode(ctx, tx, joinCode)
		if err != nil {
			return mapRepoErr(err)
		}

		sess, err := s.hydrate(rec)
		if err != nil {
			return err
		}

		// the join code is public, so a seat's token is never handed out twice
		for _, p := range sess.rec.Players {
			if p.UserID == userID {
				return apperr.New(apperr.CodeDuplicate, "user "+userID+" is already seated")
			}
		}

		seats := sess.variant.Seats()

		switch game.Status(sess.rec.Status) {
		case game.StatusCreated:
		case game.StatusLive:
			if !seats.JoinWhenLive {
				return apperr.New(apperr.CodeInvalidState, "session already started")
			}
		default:
			return apperr.New(apperr.CodeInvalidState, "session is finished")
		}

		if len(sess.rec.Players) >= seats.Max {
			return apperr.New(apperr.CodeInvalidState, "session is full")
		}

		player := sessionrepo.Player{Token: newToken(), UserID: userID, JoinedAt: s.now().UTC()}
		sess.rec.Players = append(sess.rec.Players, player)

		_, err = s.commit(ctx, tx, sess, eventlog.TypePlayerJoined, map[string]any{
			"user_id": userID,
			"seats":   len(sess.rec.Players),
		})
		if err != nil {
			return err
		}

		out = Joined{SessionID: rec.ID, PlayerToken: player.Token, Session: s.view(sess, string(game.RolePlayer))}

		return nil
	})
	if err != nil {
		return Joined{}, err
	}

	slog.Info("player joined", "session_id", out.SessionID, "user_id", userID)

	return out, nil
}
