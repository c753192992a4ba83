// Package wallets is the SQLite wallet store. Row locking is implicit: the
// ledger transaction already holds the database write lock.
package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/tablestakes/internal/infra/sqliteutil"
	"github.com/fastprodman/tablestakes/internal/repos/wallets"
)

var _ wallets.Wallets = (*walletsRepo)(nil)

type walletsRepo struct{ db *sql.DB }

func New(db *sql.DB) *walletsRepo {
	return &walletsRepo{db: db}
}

func (r *walletsRepo) Ensure(ctx context.Context, tx *sql.Tx, scopeID, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (scope_id, user_id, balance, updated_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (scope_id, user_id) DO NOTHING
	`, scopeID, userID, sqliteutil.ToMillis(at))
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	return nil
}

func (r *walletsRepo) LockAndGetBalance(ctx context.Context, tx *sql.Tx, scopeID, userID string) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		SELECT balance FROM wallets WHERE scope_id = ? AND user_id = ?
	`, scopeID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, wallets.ErrWalletNotFound
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}

func (r *walletsRepo) ReasonExists(ctx context.Context, tx *sql.Tx, scopeID, userID, reason string) (bool, error) {
	var exists bool

	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_history WHERE scope_id = ? AND user_id = ? AND reason = ?
		)
	`, scopeID, userID, reason).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reason: %w", err)
	}

	return exists, nil
}

func (r *walletsRepo) SetBalance(ctx context.Context, tx *sql.Tx, scopeID, userID string, balance int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = ?, updated_at = ? WHERE scope_id = ? AND user_id = ?
	`, balance, sqliteutil.ToMillis(at), scopeID, userID)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wallets.ErrWalletNotFound
	}

	return nil
}

func (r *walletsRepo) InsertHistory(ctx context.Context, tx *sql.Tx, entry wallets.HistoryEntry) error {
	metadata := string(entry.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_history (scope_id, user_id, delta, resulting_balance, reason, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ScopeID, entry.UserID, entry.Delta, entry.ResultingBalance, entry.Reason, metadata,
		sqliteutil.ToMillis(entry.CreatedAt))
	if err != nil {
		if sqliteutil.IsConstraintError(err) {
			return wallets.ErrDuplicateReason
		}

		return fmt.Errorf("insert history: %w", err)
	}

	return nil
}

func (r *walletsRepo) GetBalance(ctx context.Context, scopeID, userID string) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT balance FROM wallets WHERE scope_id = ? AND user_id = ?
	`, scopeID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, wallets.ErrWalletNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (r *walletsRepo) ListHistory(ctx context.Context, scopeID, userID string, limit int) ([]wallets.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope_id, user_id, delta, resulting_balance, reason, metadata, created_at
		FROM wallet_history
		WHERE scope_id = ? AND user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, scopeID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []wallets.HistoryEntry

	for rows.Next() {
		var (
			e         wallets.HistoryEntry
			metadata  string
			createdAt int64
		)

		err = rows.Scan(&e.ID, &e.ScopeID, &e.UserID, &e.Delta, &e.ResultingBalance, &e.Reason, &metadata, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		e.Metadata = []byte(metadata)
		e.CreatedAt = sqliteutil.FromMillis(createdAt)
		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return out, nil
}
