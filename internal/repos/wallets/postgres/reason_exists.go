package wallets

import (
	"context"
	"database/sql"
	"fmt"
)

func (r *walletsRepo) ReasonExists(ctx context.Context, tx *sql.Tx, scopeID, userID, reason string) (bool, error) {
	var exists bool

	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_history
			WHERE scope_id = $1 AND user_id = $2 AND reason = $3
		)
	`, scopeID, userID, reason).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reason: %w", err)
	}

	return exists, nil
}
