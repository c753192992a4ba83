package sessions

import (
	"encoding/json"
	"time"

	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
)

type CreateRequest struct {
	GameKind   game.Kind
	Stake      int64
	Currency   string
	DeckRef    string
	HostUserID string
}

type Created struct {
	Session   View   `json:"session"`
	HostToken string `json:"host_token"`
	JoinCode  string `json:"join_code"`
}

type Joined struct {
	SessionID   string `json:"session_id"`
	PlayerToken string `json:"player_token"`
	Session     View   `json:"session"`
}

type ActionRequest struct {
	SessionID string
	Token     string
	Name      string
	Payload   json.RawMessage
	// ExpectedSeq rejects the action with Conflict unless it equals the
	// session's current seq.
	ExpectedSeq *int64
}

type ActionResult struct {
	Session   View              `json:"session"`
	Seq       int64             `json:"seq"`
	Transfers []AppliedTransfer `json:"transfers"`
}

// AppliedTransfer is a wallet movement made on behalf of a session.
type AppliedTransfer struct {
	UserID  string        `json:"user_id"`
	Amount  int64         `json:"amount"`
	Reason  string        `json:"reason"`
	Balance int64         `json:"balance"`
	Status  ledger.Status `json:"status"`
}

type PlayerView struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// View is the role-redacted public state of a session. Seq is the cursor a
// client resumes the event log from.
type View struct {
	ID         string       `json:"id"`
	JoinCode   string       `json:"join_code,omitempty"`
	GameKind   game.Kind    `json:"game_kind"`
	Currency   string       `json:"currency"`
	Stake      int64        `json:"stake"`
	DeckRef    string       `json:"deck_ref,omitempty"`
	HostUserID string       `json:"host_user_id"`
	Players    []PlayerView `json:"players"`
	Status     game.Status  `json:"status"`
	Result     game.Result  `json:"result,omitempty"`
	Role       string       `json:"role"`
	State      any          `json:"state"`
	Seq        int64        `json:"seq"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// RoleSpectator is reported for callers presenting no token.
const RoleSpectator = "spectator"
