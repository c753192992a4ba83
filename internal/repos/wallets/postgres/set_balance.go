package wallets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/tablestakes/internal/repos/wallets"
)

func (r *walletsRepo) SetBalance(ctx context.Context, tx *sql.Tx, scopeID, userID string, balance int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $3, updated_at = $4
		WHERE scope_id = $1
		  AND user_id = $2
	`, scopeID, userID, balance, at)
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
