// Package ledger applies atomic, idempotent balance deltas.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/fastprodman/tablestakes/internal/infra/sqltx"
	"github.com/fastprodman/tablestakes/internal/repos/wallets"
)

const maxHistory = 500

type Service struct {
	db      *sql.DB
	wallets wallets.Wallets
	now     func() time.Time
}

func New(db *sql.DB, w wallets.Wallets) *Service {
	return &Service{
		db:      db,
		wallets: w,
		now:     time.Now,
	}
}

// ApplyDelta runs one delta in its own transaction. Insufficient funds and
// duplicate reasons are reported through Result.Status, not as errors.
func (s *Service) ApplyDelta(ctx context.Context, d Delta) (Result, error) {
	var res Result

	err := sqltx.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error

		res, err = s.ApplyDeltaTx(ctx, tx, d)

		return err
	})
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeInsufficientFunds, apperr.CodeDuplicate:
			return res, nil
		default:
			return Result{}, fmt.Errorf("apply delta: %w", err)
		}
	}

	slog.Debug("delta applied",
		"scope_id", d.ScopeID, "user_id", d.UserID, "amount", d.Amount,
		"reason", d.Reason, "balance", res.Balance)

	return res, nil
}

// ApplyDeltaTx runs the delta inside the caller's transaction:
//
// 1) Ensure the wallet row exists.
// 2) Lock it and read the balance.
// 3) Reject a reason already applied.
// 4) Reject a negative candidate unless allowed.
// 5) Write the balance and the history row.
//
// Rejections come back as both a Result and an apperr error so the caller's
// transaction rolls back.
func (s *Service) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, d Delta) (Result, error) {
	d.ScopeID = strings.TrimSpace(d.ScopeID)
	d.UserID = strings.TrimSpace(d.UserID)
	d.Reason = strings.TrimSpace(d.Reason)

	if d.ScopeID == "" || d.UserID == "" || d.Reason == "" {
		return Result{}, apperr.Wrap(apperr.CodeInvalidArgument, "invalid delta", errEmptyKey)
	}

	if d.Amount == 0 {
		return Result{}, apperr.New(apperr.CodeInvalidArgument, "delta amount must be non-zero")
	}

	metadata, err := encodeMetadata(d.Metadata)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()

	// 1) Ensure wallet exists
	err = s.wallets.Ensure(ctx, tx, d.ScopeID, d.UserID, now)
	if err != nil {
		return Result{}, fmt.Errorf("ensure wallet: %w", err)
	}

	// 2) Lock wallet row
	balance, err := s.wallets.LockAndGetBalance(ctx, tx, d.ScopeID, d.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("lock and get balance: %w", err)
	}

	// 3) Idempotency under the lock
	exists, err := s.wallets.ReasonExists(ctx, tx, d.ScopeID, d.UserID, d.Reason)
	if err != nil {
		return Result{}, fmt.Errorf("check reason: %w", err)
	}

	if exists {
		return duplicate(balance, d.Reason)
	}

	// 4) Funds check
	candidate := balance + d.Amount
	if (d.Amount > 0 && candidate < balance) || (d.Amount < 0 && candidate > balance) {
		return Result{}, apperr.New(apperr.CodeInvalidArgument, fmt.Sprintf("balance %d overflows with %d", balance, d.Amount))
	}

	if candidate < 0 && !d.AllowNegative {
		return Result{Balance: balance, Status: StatusInsufficient},
			apperr.New(apperr.CodeInsufficientFunds, fmt.Sprintf("balance %d cannot cover %d", balance, -d.Amount))
	}

	// 5) Apply
	err = s.wallets.SetBalance(ctx, tx, d.ScopeID, d.UserID, candidate, now)
	if err != nil {
		return Result{}, fmt.Errorf("set balance: %w", err)
	}

	err = s.wallets.InsertHistory(ctx, tx, wallets.HistoryEntry{
		ScopeID:          d.ScopeID,
		UserID:           d.UserID,
		Delta:            d.Amount,
		ResultingBalance: candidate,
		Reason:           d.Reason,
		Metadata:         metadata,
		CreatedAt:        now,
	})
	if err != nil {
		if errors.Is(err, wallets.ErrDuplicateReason) {
			return duplicate(balance, d.Reason)
		}

		return Result{}, fmt.Errorf("insert history: %w", err)
	}

	return Result{OK: true, Balance: candidate, Status: StatusOK}, nil
}

// Balance returns the current balance; a wallet never touched reads as zero.
func (s *Service) Balance(ctx context.Context, scopeID, userID string) (int64, error) {
	balance, err := s.wallets.GetBalance(ctx, scopeID, userID)
	if err != nil {
		if errors.Is(err, wallets.ErrWalletNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// BalanceTx reads a balance under the wallet row lock of tx.
func (s *Service) BalanceTx(ctx context.Context, tx *sql.Tx, scopeID, userID string) (int64, error) {
	balance, err := s.wallets.LockAndGetBalance(ctx, tx, scopeID, userID)
	if err != nil {
		if errors.Is(err, wallets.ErrWalletNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("lock and get balance: %w", err)
	}

	return balance, nil
}

// History returns the newest entries first.
func (s *Service) History(ctx context.Context, scopeID, userID string, limit int) ([]wallets.HistoryEntry, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}

	entries, err := s.wallets.ListHistory(ctx, scopeID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return entries, nil
}

func duplicate(balance int64, reason string) (Result, error) {
	return Result{Balance: balance, Status: StatusDuplicate},
		apperr.New(apperr.CodeDuplicate, fmt.Sprintf("reason %q already applied", reason))
}

func encodeMetadata(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage(`{}`), nil
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "encode metadata", err)
	}

	return raw, nil
}
