package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrVersionMismatch = errors.New("session version mismatch")
	ErrJoinCodeTaken   = errors.New("join code taken")
)

// Player is a seat in a session.
type Player struct {
	Token    string    `json:"token"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Record is a persisted session row. State holds the JSON of the game state;
// Version is the seq of the last event appended for the session.
type Record struct {
	ID         string
	JoinCode   string
	HostToken  string
	HostUserID string
	Players    []Player
	GameKind   string
	Currency   string
	Stake      int64
	DeckRef    string
	Status     string
	State      []byte
	Seed       []byte
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Sessions persists session records by id and join code.
type Sessions interface {
	Insert(ctx context.Context, tx *sql.Tx, rec Record) error
	// LockByID loads a session and holds its row lock until tx ends.
	LockByID(ctx context.Context, tx *sql.Tx, id string) (Record, error)
	LockByJoinCode(ctx context.Context, tx *sql.Tx, code string) (Record, error)
	// Update writes rec if the stored version still equals expectedVersion.
	Update(ctx context.Context, tx *sql.Tx, rec Record, expectedVersion int64) error
	Get(ctx context.Context, id string) (Record, error)
	// DeleteFinishedBefore purges sessions finished before cutoff and returns their ids.
	DeleteFinishedBefore(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]string, error)
}

// EncodePlayers serializes seats for storage.
func EncodePlayers(players []Player) (string, error) {
	if players == nil {
		players = []Player{}
	}

	raw, err := json.Marshal(players)
	if err != nil {
		return "", fmt.Errorf("encode players: %w", err)
	}

	return string(raw), nil
}

// DecodePlayers restores seats from storage.
func DecodePlayers(raw []byte) ([]Player, error) {
	var players []Player

	err := json.Unmarshal(raw, &players)
	if err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}

	return players, nil
}
