package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/tablestakes/internal/infra/sqliteutil"
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
		players    string
		state      string
		createdAt  int64
		updatedAt  int64
		startedAt  sql.NullInt64
		finishedAt sql.NullInt64
	)

	err := row.Scan(
		&rec.ID, &rec.JoinCode, &rec.HostToken, &rec.HostUserID, &players, &rec.GameKind,
		&rec.Currency, &rec.Stake, &rec.DeckRef, &rec.Status, &state, &rec.Seed,
		&rec.Version, &createdAt, &updatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sessions.Record{}, sessions.ErrSessionNotFound
		}

		return sessions.Record{}, fmt.Errorf("scan session: %w", err)
	}

	rec.Players, err = sessions.DecodePlayers([]byte(players))
	if err != nil {
		return sessions.Record{}, err
	}

	rec.State = []byte(state)
	rec.CreatedAt = sqliteutil.FromMillis(createdAt)
	rec.UpdatedAt = sqliteutil.FromMillis(updatedAt)
	rec.StartedAt = sqliteutil.FromNullMillis(startedAt)
	rec.FinishedAt = sqliteutil.FromNullMillis(finishedAt)

	return rec, nil
}

func (r *sessionsRepo) Insert(ctx context.Context, tx *sql.Tx, rec sessions.Record) error {
	players, err := sessions.EncodePlayers(rec.Players)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.JoinCode, rec.HostToken, rec.HostUserID, players, rec.GameKind,
		rec.Currency, rec.Stake, rec.DeckRef, rec.Status, string(rec.State), rec.Seed,
		rec.Version, sqliteutil.ToMillis(rec.CreatedAt), sqliteutil.ToMillis(rec.UpdatedAt),
		sqliteutil.ToNullMillis(rec.StartedAt), sqliteutil.ToNullMillis(rec.FinishedAt),
	)
	if err != nil {
		if sqliteutil.IsConstraintError(err) {
			return sessions.ErrJoinCodeTaken
		}

		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (r *sessionsRepo) LockByID(ctx context.Context, tx *sql.Tx, id string) (sessions.Record, error) {
	return scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) LockByJoinCode(ctx context.Context, tx *sql.Tx, code string) (sessions.Record, error) {
	return scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions WHERE join_code = ?`, code))
}

func (r *sessionsRepo) Update(ctx context.Context, tx *sql.Tx, rec sessions.Record, expectedVersion int64) error {
	players, err := sessions.EncodePlayers(rec.Players)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET players = ?, status = ?, state = ?, version = ?, updated_at = ?, started_at = ?, finished_at = ?
		WHERE id = ? AND version = ?
	`, players, rec.Status, string(rec.State), rec.Version, sqliteutil.ToMillis(rec.UpdatedAt),
		sqliteutil.ToNullMillis(rec.StartedAt), sqliteutil.ToNullMillis(rec.FinishedAt),
		rec.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return sessions.ErrVersionMismatch
	}

	return nil
}

func (r *sessionsRepo) Get(ctx context.Context, id string) (sessions.Record, error) {
	return scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) DeleteFinishedBefore(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		DELETE FROM sessions
		WHERE status = 'finished' AND finished_at < ?
		RETURNING id
	`, sqliteutil.ToMillis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("delete finished sessions: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan purged id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate purged ids: %w", err)
	}

	return ids, nil
}
