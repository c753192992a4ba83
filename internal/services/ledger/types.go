package ledger

import "errors"

type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient"
	StatusDuplicate    Status = "duplicate"
)

// Delta is one signed balance change. Reason is the causal key: it is
// applied at most once per (ScopeID, UserID).
type Delta struct {
	ScopeID       string
	UserID        string
	Amount        int64 // minor units, negative for debits
	Reason        string
	Metadata      map[string]any
	AllowNegative bool
}

type Result struct {
	OK      bool   `json:"ok"`
	Balance int64  `json:"balance"`
	Status  Status `json:"status"`
}

var errEmptyKey = errors.New("scope, user and reason are required")
