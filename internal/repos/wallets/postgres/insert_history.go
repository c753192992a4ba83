package wallets

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/infra/pgutils"
	"github.com/fastprodman/tablestakes/internal/repos/wallets"
)

func (r *walletsRepo) InsertHistory(ctx context.Context, tx *sql.Tx, entry wallets.HistoryEntry) error {
	metadata := string(entry.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_history (scope_id, user_id, delta, resulting_balance, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ScopeID, entry.UserID, entry.Delta, entry.ResultingBalance, entry.Reason, metadata, entry.CreatedAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return wallets.ErrDuplicateReason
		}

		return fmt.Errorf("insert history: %w", err)
	}

	return nil
}
