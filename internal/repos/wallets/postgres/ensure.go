package wallets

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Ensure creates a zero-balance wallet if none exists yet, so the row can be locked.
func (r *walletsRepo) Ensure(ctx context.Context, tx *sql.Tx, scopeID, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (scope_id, user_id, balance, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (scope_id, user_id) DO NOTHING
	`, scopeID, userID, at)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	return nil
}
