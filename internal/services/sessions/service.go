// Package sessions coordinates game sessions: it authorizes actors, runs
// the game rules, moves stakes through the ledger and appends one event per
// successful mutation, all inside a single transaction.
package sessions

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/infra/sqltx"
	sessionrepo "github.com/fastprodman/tablestakes/internal/repos/sessions"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
)

const defaultGraceTTL = 10 * time.Minute

type Config struct {
	// GraceTTL is how long a finished session stays readable.
	GraceTTL time.Duration
}

type Service struct {
	db       *sql.DB
	sessions sessionrepo.Sessions
	events   *eventlog.Log
	ledger   *ledger.Service
	games    *game.Registry
	grace    time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(
	db *sql.DB,
	repo sessionrepo.Sessions,
	events *eventlog.Log,
	ledgerSvc *ledger.Service,
	games *game.Registry,
	cfg Config,
	opts ...Option,
) *Service {
	grace := cfg.GraceTTL
	if grace <= 0 {
		grace = defaultGraceTTL
	}

	s := &Service{
		db:       db,
		sessions: repo,
		events:   events,
		ledger:   ledgerSvc,
		games:    games,
		grace:    grace,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// session is a locked record with its decoded game state.
type session struct {
	rec     sessionrepo.Record
	variant game.Variant
	state   game.State
}

// lock loads and row-locks a live-or-grace session inside tx.
func (s *Service) lock(ctx context.Context, tx *sql.Tx, id string) (*session, error) {
	rec, err := s.sessions.LockByID(ctx, tx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	return s.hydrate(rec)
}

func (s *Service) hydrate(rec sessionrepo.Record) (*session, error) {
	if s.expired(rec) {
		return nil, apperr.New(apperr.CodeNotFound, "session ended")
	}

	v, err := s.games.Lookup(game.Kind(rec.GameKind))
	if err != nil {
		return nil, fmt.Errorf("lookup variant: %w", err)
	}

	st, err := v.Decode(rec.State)
	if err != nil {
		return nil, fmt.Errorf("decode %s state: %w", rec.GameKind, err)
	}

	return &session{rec: rec, variant: v, state: st}, nil
}

func (s *Service) expired(rec sessionrepo.Record) bool {
	if rec.Status != string(game.StatusFinished) || rec.FinishedAt == nil {
		return false
	}

	return s.now().After(rec.FinishedAt.Add(s.grace))
}

// commit persists the session's new state and appends its event. The
// version moves to the seq of the appended event.
func (s *Service) commit(ctx context.Context, tx *sql.Tx, sess *session, typ string, data any) (int64, error) {
	raw, err := json.Marshal(sess.state)
	if err != nil {
		return 0, fmt.Errorf("encode state: %w", err)
	}

	now := s.now().UTC()
	out := game.OutcomeOf(sess.state)
	prev := sess.rec.Version

	sess.rec.State = raw
	sess.rec.Status = string(out.Status)
	sess.rec.UpdatedAt = now
	sess.rec.Version = prev + 1

	if out.Status == game.StatusFinished && sess.rec.FinishedAt == nil {
		sess.rec.FinishedAt = &now
	}

	err = s.sessions.Update(ctx, tx, sess.rec, prev)
	if err != nil {
		return 0, mapRepoErr(err)
	}

	ev, err := s.events.Append(ctx, tx, sess.rec.ID, typ, data)
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", typ, err)
	}

	if ev.Seq != sess.rec.Version {
		return 0, apperr.New(apperr.CodeConflict, "event log out of step with session version")
	}

	return ev.Seq, nil
}

// transfer moves money for a session through the ledger inside tx. Zero
// transfers are skipped.
func (s *Service) transfer(ctx context.Context, tx *sql.Tx, rec sessionrepo.Record, ts []game.Transfer) ([]AppliedTransfer, error) {
	applied := make([]AppliedTransfer, 0, len(ts))

	for _, t := range ts {
		if t.Amount == 0 {
			continue
		}

		metadata := map[string]any{"session_id": rec.ID, "game_kind": rec.GameKind}
		for k, v := range t.Metadata {
			metadata[k] = v
		}

		reason := reasonKey(rec.ID, t.Reason)

		res, err := s.ledger.ApplyDeltaTx(ctx, tx, ledger.Delta{
			ScopeID:  rec.Currency,
			UserID:   t.UserID,
			Amount:   t.Amount,
			Reason:   reason,
			Metadata: metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("transfer %s for %s: %w", reason, t.UserID, err)
		}

		applied = append(applied, AppliedTransfer{
			UserID:  t.UserID,
			Amount:  t.Amount,
			Reason:  reason,
			Balance: res.Balance,
			Status:  res.Status,
		})
	}

	return applied, nil
}

func reasonKey(sessionID, reason string) string {
	return "session:" + sessionID + ":" + reason
}

// roleOf resolves a token to the role and user id it stands for.
func roleOf(rec sessionrepo.Record, token string) (game.Role, string, error) {
	if token == "" {
		return "", "", apperr.New(apperr.CodeUnauthorized, "session token required")
	}

	if tokenEqual(rec.HostToken, token) {
		return game.RoleHost, rec.HostUserID, nil
	}

	for _, p := range rec.Players {
		if tokenEqual(p.Token, token) {
			return game.RolePlayer, p.UserID, nil
		}
	}

	return "", "", apperr.New(apperr.CodeUnauthorized, "token does not belong to this session")
}

func requireHost(rec sessionrepo.Record, token string) error {
	if token == "" || !tokenEqual(rec.HostToken, token) {
		return apperr.New(apperr.CodeUnauthorized, "host token required")
	}

	return nil
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Service) view(sess *session, role string) View {
	rec := sess.rec
	out := game.OutcomeOf(sess.state)

	gameRole := game.RolePlayer
	if role == string(game.RoleHost) {
		gameRole = game.RoleHost
	}

	players := make([]PlayerView, 0, len(rec.Players))
	for _, p := range rec.Players {
		players = append(players, PlayerView{UserID: p.UserID, JoinedAt: p.JoinedAt})
	}

	v := View{
		ID:         rec.ID,
		GameKind:   game.Kind(rec.GameKind),
		Currency:   rec.Currency,
		Stake:      rec.Stake,
		DeckRef:    rec.DeckRef,
		HostUserID: rec.HostUserID,
		Players:    players,
		Status:     out.Status,
		Result:     out.Result,
		Role:       role,
		State:      sess.variant.View(sess.state, gameRole),
		Seq:        rec.Version,
		CreatedAt:  rec.CreatedAt,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}

	if gameRole == game.RoleHost {
		v.JoinCode = rec.JoinCode
	}

	return v
}

func (s *Service) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sqltx.WithTx(ctx, s.db, fn)
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, sessionrepo.ErrSessionNotFound):
		return apperr.Wrap(apperr.CodeNotFound, "session not found", err)
	case errors.Is(err, sessionrepo.ErrVersionMismatch):
		return apperr.Wrap(apperr.CodeConflict, "session changed concurrently", err)
	default:
		return err
	}
}

func logAttrs(rec sessionrepo.Record) []any {
	return []any{"session_id", rec.ID, "game_kind", rec.GameKind, "seq", rec.Version}
}
