package game

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/fastprodman/tablestakes/internal/apperr"
)

// Bet kinds and what they pay on a winning roll.
var crapsPays = map[string]int64{
	"over":  2, // sum > 7
	"under": 2, // sum < 7
	"seven": 5, // sum == 7
}

// CrapsBet is one outstanding wager in the current round.
type CrapsBet struct {
	Nonce  string `json:"nonce"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

// CrapsSettlement is the aggregated payout of one player for a round.
type CrapsSettlement struct {
	UserID string `json:"user_id"`
	Staked int64  `json:"staked"`
	Payout int64  `json:"payout"`
}

// CrapsState is a shared table of rounds. Bets accumulate until the host rolls.
type CrapsState struct {
	Outcome
	Stake         int64             `json:"stake"`
	Round         int               `json:"round"`
	Bets          []CrapsBet        `json:"bets"`
	LastRoll      [2]int            `json:"last_roll"`
	ResolvedRound int               `json:"resolved_round"`
	Settlements   []CrapsSettlement `json:"settlements"`
}

// Craps lets players bet on a single roll of two dice.
type Craps struct {
	MaxPlayers int
}

func (Craps) Kind() Kind { return KindCraps }

func (c Craps) Seats() Seats { return Seats{Max: c.MaxPlayers, JoinWhenLive: true} }

func (Craps) Init(stake int64) (State, error) {
	return CrapsState{Outcome: Outcome{Status: StatusCreated}, Stake: stake, Round: 1}, nil
}

func (Craps) Decode(raw []byte) (State, error) {
	return decodeState[CrapsState](raw)
}

func (Craps) Rule(action string) (Rule, bool) {
	switch action {
	case "bet":
		return Rule{Role: RolePlayer}, true
	case "roll":
		return Rule{Role: RoleHost, Resolves: true}, true
	default:
		return Rule{}, false
	}
}

type betPayload struct {
	Nonce  string `json:"nonce"`
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

func parseBet(act Action, defaultAmount int64) (CrapsBet, error) {
	var p betPayload

	err := decodePayload(act.Payload, &p)
	if err != nil {
		return CrapsBet{}, err
	}

	nonce := strings.TrimSpace(p.Nonce)
	if nonce == "" {
		return CrapsBet{}, apperr.New(apperr.CodeInvalidAction, "bet requires a nonce")
	}

	if _, ok := crapsPays[p.Kind]; !ok {
		return CrapsBet{}, apperr.New(apperr.CodeInvalidAction, fmt.Sprintf("unknown bet kind %q", p.Kind))
	}

	amount := p.Amount
	if amount == 0 {
		amount = defaultAmount
	}

	if amount <= 0 {
		return CrapsBet{}, apperr.New(apperr.CodeInvalidAction, "bet amount must be positive")
	}

	return CrapsBet{Nonce: nonce, UserID: act.Actor, Kind: p.Kind, Amount: amount}, nil
}

func (Craps) Stakes(st State, act Action) ([]Transfer, error) {
	s, err := castState[CrapsState](st)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case ActionStart:
		return nil, nil
	case "bet":
		err = requireLive(s.Outcome)
		if err != nil {
			return nil, err
		}

		bet, err := parseBet(act, s.Stake)
		if err != nil {
			return nil, err
		}

		return []Transfer{{
			UserID:   bet.UserID,
			Amount:   -bet.Amount,
			Reason:   "bet:" + bet.Nonce,
			Metadata: map[string]any{"round": s.Round, "kind": bet.Kind},
		}}, nil
	case "roll":
		return nil, requireLive(s.Outcome)
	default:
		return nil, unknownAction(act.Name)
	}
}

func (Craps) Start(st State, _ []string, _ *rand.Rand) (State, error) {
	s, err := castState[CrapsState](st)
	if err != nil {
		return nil, err
	}

	s.Status = StatusLive

	return s, nil
}

func (Craps) Apply(st State, act Action, rng *rand.Rand) (State, error) {
	s, err := castState[CrapsState](st)
	if err != nil {
		return nil, err
	}

	err = requireLive(s.Outcome)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case "bet":
		bet, err := parseBet(act, s.Stake)
		if err != nil {
			return nil, err
		}

		for _, b := range s.Bets {
			if b.UserID == bet.UserID && b.Nonce == bet.Nonce {
				return nil, apperr.New(apperr.CodeDuplicate, "bet nonce already placed")
			}
		}

		s.Bets = append(slices.Clone(s.Bets), bet)

		return s, nil
	case "roll":
		if len(s.Bets) == 0 {
			return nil, apperr.New(apperr.CodeInvalidAction, "no bets to resolve")
		}

		roll := [2]int{rng.IntN(6) + 1, rng.IntN(6) + 1}

		s.LastRoll = roll
		s.Settlements = SettleRound(s.Bets, roll[0]+roll[1])
		s.ResolvedRound = s.Round
		s.Round++
		s.Bets = nil

		return s, nil
	default:
		return nil, unknownAction(act.Name)
	}
}

// SettleRound resolves bets against a dice sum, one settlement per player
// ordered by user id.
func SettleRound(bets []CrapsBet, sum int) []CrapsSettlement {
	byUser := make(map[string]*CrapsSettlement)

	for _, b := range bets {
		st, ok := byUser[b.UserID]
		if !ok {
			st = &CrapsSettlement{UserID: b.UserID}
			byUser[b.UserID] = st
		}

		st.Staked += b.Amount

		won := (b.Kind == "over" && sum > 7) ||
			(b.Kind == "under" && sum < 7) ||
			(b.Kind == "seven" && sum == 7)
		if won {
			st.Payout += b.Amount * crapsPays[b.Kind]
		}
	}

	out := make([]CrapsSettlement, 0, len(byUser))
	for _, st := range byUser {
		out = append(out, *st)
	}

	slices.SortFunc(out, func(a, b CrapsSettlement) int { return strings.Compare(a.UserID, b.UserID) })

	return out
}

func (Craps) Payouts(st State, act Action) []Transfer {
	s, ok := st.(CrapsState)
	if !ok || act.Name != "roll" {
		return nil
	}

	round := strconv.Itoa(s.ResolvedRound)

	var out []Transfer
	// losing bettors get a zero transfer so they still count as involved
	for _, settle := range s.Settlements {
		out = append(out, Transfer{
			UserID:   settle.UserID,
			Amount:   settle.Payout,
			Reason:   "round:" + round + ":payout:" + settle.UserID,
			Metadata: map[string]any{"round": s.ResolvedRound, "roll": s.LastRoll},
		})
	}

	return out
}

// Abort refunds every outstanding bet of the open round.
func (Craps) Abort(st State) (State, []Transfer) {
	s, ok := st.(CrapsState)
	if !ok || s.Status == StatusFinished {
		return st, nil
	}

	refunds := make([]Transfer, 0, len(s.Bets))
	for _, b := range s.Bets {
		refunds = append(refunds, Transfer{
			UserID:   b.UserID,
			Amount:   b.Amount,
			Reason:   "refund:" + b.Nonce,
			Metadata: map[string]any{"round": s.Round},
		})
	}

	s.Bets = nil
	s.Status = StatusFinished

	return s, refunds
}

func (Craps) View(st State, _ Role) any {
	s, ok := st.(CrapsState)
	if !ok {
		return nil
	}

	return s
}
