// Package game implements the rules of every supported mini-game as pure
// state transitions. Variants never touch storage or wallets: they describe
// the stake debits an action needs and the payouts a resolution produces, and
// the session coordinator moves the money.
package game

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/fastprodman/tablestakes/internal/apperr"
)

// Kind identifies a game variant.
type Kind string

const (
	KindBlackjack Kind = "blackjack"
	KindPoker     Kind = "poker"
	KindHighLow   Kind = "highlow"
	KindSlots     Kind = "slots"
	KindCraps     Kind = "craps"
)

// Role of the actor presenting a session token.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Status of a game. It only moves forward: created -> live -> finished.
type Status string

const (
	StatusCreated  Status = "created"
	StatusLive     Status = "live"
	StatusFinished Status = "finished"
)

// Result of a resolved game.
type Result string

const (
	ResultNone      Result = ""
	ResultWin       Result = "win"
	ResultLoss      Result = "loss"
	ResultPush      Result = "push"
	ResultCancelled Result = "cancelled"
)

// ActionStart is the pseudo action used to ask a variant for start-time stakes.
const ActionStart = "start"

// Outcome is embedded in every variant state.
type Outcome struct {
	Status Status `json:"status"`
	Result Result `json:"result"`
}

func (o Outcome) outcome() Outcome { return o }

// State is the closed union of variant states. Only types in this package
// can satisfy it.
type State interface {
	outcome() Outcome
}

// OutcomeOf returns the status and result carried by st.
func OutcomeOf(st State) Outcome {
	return st.outcome()
}

// Action is one request against a live game.
type Action struct {
	Name    string
	Actor   string // user id behind the presented token
	Role    Role
	Payload json.RawMessage
}

// Transfer is a wallet movement requested by a variant. Negative amounts are
// stake debits, positive amounts are payouts. Reason is unique per session
// and user; the coordinator prefixes it with the session id.
type Transfer struct {
	UserID   string         `json:"user_id"`
	Amount   int64          `json:"amount"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Rule describes who may perform an action. Resolves marks actions that
// settle stakes, after which exhausted wallets end the session.
type Rule struct {
	Role     Role
	Resolves bool
}

// Seats bounds who may join a session.
type Seats struct {
	Max          int
	JoinWhenLive bool
}

// Variant is the rule set of one game kind.
type Variant interface {
	Kind() Kind
	Seats() Seats
	// Init builds the created state for a session with the given stake.
	Init(stake int64) (State, error)
	// Decode restores a persisted state.
	Decode(raw []byte) (State, error)
	// Rule reports the role required for an action, false if unknown.
	Rule(action string) (Rule, bool)
	// Stakes validates an action and returns the debits it requires.
	Stakes(st State, act Action) ([]Transfer, error)
	// Start makes the game live; seats are the user ids of joined players.
	Start(st State, seats []string, rng *rand.Rand) (State, error)
	Apply(st State, act Action, rng *rand.Rand) (State, error)
	// Payouts returns the credits owed after act produced st.
	Payouts(st State, act Action) []Transfer
	// Abort finishes a game early and returns the refunds owed.
	Abort(st State) (State, []Transfer)
	// View returns the state as seen by role.
	View(st State, role Role) any
}

// Registry maps kinds to variants.
type Registry struct {
	variants map[Kind]Variant
}

// Config tunes variant construction.
type Config struct {
	MaxCrapsPlayers int
}

// NewRegistry returns a registry holding every supported variant.
func NewRegistry(cfg Config) *Registry {
	maxCraps := cfg.MaxCrapsPlayers
	if maxCraps <= 0 {
		maxCraps = 8
	}

	r := &Registry{variants: make(map[Kind]Variant)}
	for _, v := range []Variant{
		Blackjack{},
		Poker{},
		HighLow{},
		Slots{},
		Craps{MaxPlayers: maxCraps},
	} {
		r.variants[v.Kind()] = v
	}

	return r
}

// Lookup returns the variant for kind.
func (r *Registry) Lookup(kind Kind) (Variant, error) {
	v, ok := r.variants[kind]
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidArgument, fmt.Sprintf("unknown game kind %q", kind))
	}

	return v, nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	err := json.Unmarshal(raw, dst)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidAction, "decode payload", err)
	}

	return nil
}

func decodeState[T State](raw []byte) (State, error) {
	var st T

	err := json.Unmarshal(raw, &st)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return st, nil
}

func castState[T State](st State) (T, error) {
	typed, ok := st.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected state type %T", st)
	}

	return typed, nil
}

func requireLive(o Outcome) error {
	if o.Status != StatusLive {
		return apperr.New(apperr.CodeInvalidState, fmt.Sprintf("game is %s", o.Status))
	}

	return nil
}

func unknownAction(name string) error {
	return apperr.New(apperr.CodeInvalidAction, fmt.Sprintf("unknown action %q", name))
}
