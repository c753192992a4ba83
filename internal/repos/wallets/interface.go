package wallets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrDuplicateReason = errors.New("duplicate reason")
)

// HistoryEntry is one applied delta. (ScopeID, UserID, Reason) is unique.
type HistoryEntry struct {
	ID               int64
	ScopeID          string
	UserID           string
	Delta            int64
	ResultingBalance int64
	Reason           string
	Metadata         json.RawMessage
	CreatedAt        time.Time
}

// Wallets stores per-(scope, user) balances and their history. Methods taking
// a *sql.Tx must run inside the ledger's transaction.
type Wallets interface {
	Ensure(ctx context.Context, tx *sql.Tx, scopeID, userID string, at time.Time) error
	LockAndGetBalance(ctx context.Context, tx *sql.Tx, scopeID, userID string) (int64, error)
	ReasonExists(ctx context.Context, tx *sql.Tx, scopeID, userID, reason string) (bool, error)
	SetBalance(ctx context.Context, tx *sql.Tx, scopeID, userID string, balance int64, at time.Time) error
	InsertHistory(ctx context.Context, tx *sql.Tx, entry HistoryEntry) error
	GetBalance(ctx context.Context, scopeID, userID string) (int64, error)
	ListHistory(ctx context.Context, scopeID, userID string, limit int) ([]HistoryEntry, error)
}
