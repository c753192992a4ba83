package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	sessionrepo "github.com/fastprodman/tablestakes/internal/repos/sessions"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
	"github.com/google/uuid"
)

const joinCodeAttempts = 3

// Create opens a session in the created state and appends session.created
// as seq 1. Sessions past their grace window are purged first.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Created, error) {
	req.Currency = strings.TrimSpace(req.Currency)
	req.HostUserID = strings.TrimSpace(req.HostUserID)

	if req.HostUserID == "" {
		return Created{}, apperr.New(apperr.CodeInvalidArgument, "host user id is required")
	}

	if req.Currency == "" {
		return Created{}, apperr.New(apperr.CodeInvalidArgument, "currency is required")
	}

	if req.Stake < 0 {
		return Created{}, apperr.New(apperr.CodeInvalidArgument, "stake must not be negative")
	}

	v, err := s.games.Lookup(req.GameKind)
	if err != nil {
		return Created{}, err
	}

	st, err := v.Init(req.Stake)
	if err != nil {
		return Created{}, err
	}

	s.purgeExpired(ctx)

	seed, err := newSeed()
	if err != nil {
		return Created{}, err
	}

	now := s.now().UTC()
	sess := &session{
		rec: sessionrepo.Record{
			ID:         uuid.NewString(),
			HostToken:  newToken(),
			HostUserID: req.HostUserID,
			Players:    []sessionrepo.Player{},
			GameKind:   string(req.GameKind),
			Currency:   req.Currency,
			Stake:      req.Stake,
			DeckRef:    req.DeckRef,
			Status:     string(game.StatusCreated),
			Seed:       seed,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		variant: v,
		state:   st,
	}

	for attempt := 1; ; attempt++ {
		sess.rec.JoinCode = newJoinCode()
		sess.rec.Version = 0

		err = s.withTx(ctx, func(tx *sql.Tx) error {
			return s.insert(ctx, tx, sess)
		})
		if err == nil {
			break
		}

		if !errors.Is(err, sessionrepo.ErrJoinCodeTaken) || attempt == joinCodeAttempts {
			return Created{}, fmt.Errorf("create session: %w", err)
		}
	}

	slog.Info("session created", logAttrs(sess.rec)...)

	return Created{
		Session:   s.view(sess, string(game.RoleHost)),
		HostToken: sess.rec.HostToken,
		JoinCode:  sess.rec.JoinCode,
	}, nil
}

func (s *Service) insert(ctx context.Context, tx *sql.Tx, sess *session) error {
	raw, err := json.Marshal(sess.state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	sess.rec.State = raw
	sess.rec.Version = 1

	err = s.sessions.Insert(ctx, tx, sess.rec)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	_, err = s.events.Append(ctx, tx, sess.rec.ID, eventlog.TypeSessionCreated, map[string]any{
		"game_kind":    sess.rec.GameKind,
		"currency":     sess.rec.Currency,
		"stake":        sess.rec.Stake,
		"deck_ref":     sess.rec.DeckRef,
		"host_user_id": sess.rec.HostUserID,
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", eventlog.TypeSessionCreated, err)
	}

	return nil
}

// purgeExpired drops sessions finished before the grace window. Failures
// are logged; they never fail the request that triggered them.
func (s *Service) purgeExpired(ctx context.Context) {
	cutoff := s.now().Add(-s.grace)

	var purged []string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := s.sessions.DeleteFinishedBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}

		for _, id := range ids {
			err = s.events.Purge(ctx, tx, id)
			if err != nil {
				return err
			}
		}

		purged = ids

		return nil
	})
	if err != nil {
		slog.Warn("purge expired sessions", "error", err)
		return
	}

	if len(purged) > 0 {
		slog.Info("purged expired sessions", "count", len(purged))
	}
}
