package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/repos/wallets"
)

func (r *walletsRepo) GetBalance(ctx context.Context, scopeID, userID string) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT balance
		FROM wallets
		WHERE scope_id = $1
		  AND user_id = $2
	`, scopeID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, wallets.ErrWalletNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
