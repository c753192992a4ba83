package wallets

import (
	"context"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/repos/wallets"
)

// ListHistory returns the newest entries first.
func (r *walletsRepo) ListHistory(ctx context.Context, scopeID, userID string, limit int) ([]wallets.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope_id, user_id, delta, resulting_balance, reason, metadata, created_at
		FROM wallet_history
		WHERE scope_id = $1
		  AND user_id = $2
		ORDER BY id DESC
		LIMIT $3
	`, scopeID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []wallets.HistoryEntry

	for rows.Next() {
		var (
			e        wallets.HistoryEntry
			metadata []byte
		)

		err = rows.Scan(&e.ID, &e.ScopeID, &e.UserID, &e.Delta, &e.ResultingBalance, &e.Reason, &metadata, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		e.Metadata = metadata

		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return out, nil
}
