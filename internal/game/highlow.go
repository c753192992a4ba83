package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/fastprodman/tablestakes/internal/apperr"
)

// HighLowState holds the face-up card and, after the guess, the next one.
type HighLowState struct {
	Outcome
	Stake   int64  `json:"stake"`
	Player  string `json:"player"`
	Shoe    []Card `json:"shoe"`
	Current Card   `json:"current"`
	Next    *Card  `json:"next,omitempty"`
	Guess   string `json:"guess,omitempty"`
}

// HighLow reveals one card and pays when the player calls the next one.
// Equal ranks pay out whichever direction was guessed.
type HighLow struct{}

func (HighLow) Kind() Kind   { return KindHighLow }
func (HighLow) Seats() Seats { return Seats{Max: 1} }

func (HighLow) Init(stake int64) (State, error) {
	return HighLowState{Outcome: Outcome{Status: StatusCreated}, Stake: stake}, nil
}

func (HighLow) Decode(raw []byte) (State, error) {
	return decodeState[HighLowState](raw)
}

func (HighLow) Rule(action string) (Rule, bool) {
	if action == "guess" {
		return Rule{Role: RolePlayer, Resolves: true}, true
	}

	return Rule{}, false
}

type guessPayload struct {
	Direction string `json:"direction"`
}

func (HighLow) Stakes(st State, act Action) ([]Transfer, error) {
	s, err := castState[HighLowState](st)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case ActionStart:
		return []Transfer{{UserID: act.Actor, Amount: -s.Stake, Reason: "stake"}}, nil
	case "guess":
		err = requireLive(s.Outcome)
		if err != nil {
			return nil, err
		}

		_, err = parseGuess(act)

		return nil, err
	default:
		return nil, unknownAction(act.Name)
	}
}

func parseGuess(act Action) (string, error) {
	var p guessPayload

	err := decodePayload(act.Payload, &p)
	if err != nil {
		return "", err
	}

	switch p.Direction {
	case "higher", "lower":
		return p.Direction, nil
	default:
		return "", apperr.New(apperr.CodeInvalidAction, fmt.Sprintf("direction must be higher or lower, got %q", p.Direction))
	}
}

func (HighLow) Start(st State, seats []string, rng *rand.Rand) (State, error) {
	s, err := castState[HighLowState](st)
	if err != nil {
		return nil, err
	}

	if len(seats) != 1 {
		return nil, apperr.New(apperr.CodeInvalidState, "high-low needs exactly one player")
	}

	card, shoe, err := draw(shuffledDeck(rng), 1)
	if err != nil {
		return nil, err
	}

	s.Player = seats[0]
	s.Current = card[0]
	s.Shoe = shoe
	s.Status = StatusLive

	return s, nil
}

func (HighLow) Apply(st State, act Action, _ *rand.Rand) (State, error) {
	s, err := castState[HighLowState](st)
	if err != nil {
		return nil, err
	}

	err = requireLive(s.Outcome)
	if err != nil {
		return nil, err
	}

	if act.Name != "guess" {
		return nil, unknownAction(act.Name)
	}

	direction, err := parseGuess(act)
	if err != nil {
		return nil, err
	}

	card, shoe, err := draw(s.Shoe, 1)
	if err != nil {
		return nil, fmt.Errorf("reveal: %w", err)
	}

	next := card[0]
	s.Shoe = shoe
	s.Next = &next
	s.Guess = direction
	s.Status = StatusFinished

	cur, nxt := s.Current.highRank(), next.highRank()

	switch {
	case cur == nxt:
		s.Result = ResultWin
	case direction == "higher" && nxt > cur, direction == "lower" && nxt < cur:
		s.Result = ResultWin
	default:
		s.Result = ResultLoss
	}

	return s, nil
}

func (HighLow) Payouts(st State, _ Action) []Transfer {
	s, ok := st.(HighLowState)
	if !ok || s.Status != StatusFinished || s.Result != ResultWin {
		return nil
	}

	return []Transfer{{UserID: s.Player, Amount: 2 * s.Stake, Reason: "payout", Metadata: map[string]any{"guess": s.Guess}}}
}

func (HighLow) Abort(st State) (State, []Transfer) {
	s, ok := st.(HighLowState)
	if !ok {
		return st, nil
	}

	return abortSingleStake(s.Outcome, s.Player, s.Stake, func(o Outcome) State {
		s.Outcome = o
		return s
	})
}

// HighLowView is the public high-low state.
type HighLowView struct {
	Outcome
	Stake   int64  `json:"stake"`
	Current *Card  `json:"current,omitempty"`
	Next    *Card  `json:"next,omitempty"`
	Guess   string `json:"guess,omitempty"`
}

func (HighLow) View(st State, _ Role) any {
	s, ok := st.(HighLowState)
	if !ok {
		return nil
	}

	view := HighLowView{Outcome: s.Outcome, Stake: s.Stake, Next: s.Next, Guess: s.Guess}
	if s.Status != StatusCreated {
		cur := s.Current
		view.Current = &cur
	}

	return view
}
