package sessions

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/repos/sessions"
)

var _ sessions.Sessions = (*sessionsRepo)(nil)

const recordColumns = `id, join_code, host_token, host_user_id, players, game_kind, currency, stake,
	deck_ref, status, state, seed, version, created_at, updated_at, started_at, finished_at`

type sessionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *sessionsRepo {
	return &sessionsRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (sessions.Record, error) {
	var (
		rec        sessions.Record
		players    []byte
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID, &rec.JoinCode, &rec.HostToken, &rec.HostUserID, &players, &rec.GameKind,
		&rec.Currency, &rec.Stake, &rec.DeckRef, &rec.Status, &rec.State, &rec.Seed,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sessions.Record{}, sessions.ErrSessionNotFound
		}

		return sessions.Record{}, fmt.Errorf("scan session: %w", err)
	}

	rec.Players, err = sessions.DecodePlayers(players)
	if err != nil {
		return sessions.Record{}, err
	}

	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}

	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}

	return rec, nil
}
