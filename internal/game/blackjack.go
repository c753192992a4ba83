package game

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/fastprodman/tablestakes/internal/apperr"
)

const dealerStandsOn = 17

// BlackjackState is one hand of player versus dealer.
type BlackjackState struct {
	Outcome
	Stake       int64  `json:"stake"`
	Player      string `json:"player"`
	Shoe        []Card `json:"shoe"`
	PlayerHand  []Card `json:"player_hand"`
	DealerHand  []Card `json:"dealer_hand"`
	PlayerTotal int    `json:"player_total"`
	DealerTotal int    `json:"dealer_total"`
}

// Blackjack deals 2+2, lets the player hit or stand, then plays the dealer.
type Blackjack struct{}

func (Blackjack) Kind() Kind   { return KindBlackjack }
func (Blackjack) Seats() Seats { return Seats{Max: 1} }

func (Blackjack) Init(stake int64) (State, error) {
	return BlackjackState{Outcome: Outcome{Status: StatusCreated}, Stake: stake}, nil
}

func (Blackjack) Decode(raw []byte) (State, error) {
	return decodeState[BlackjackState](raw)
}

func (Blackjack) Rule(action string) (Rule, bool) {
	switch action {
	case "hit", "stand":
		return Rule{Role: RolePlayer, Resolves: true}, true
	default:
		return Rule{}, false
	}
}

func (Blackjack) Stakes(st State, act Action) ([]Transfer, error) {
	s, err := castState[BlackjackState](st)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case ActionStart:
		return []Transfer{{UserID: act.Actor, Amount: -s.Stake, Reason: "stake"}}, nil
	case "hit", "stand":
		return nil, requireLive(s.Outcome)
	default:
		return nil, unknownAction(act.Name)
	}
}

func (Blackjack) Start(st State, seats []string, rng *rand.Rand) (State, error) {
	s, err := castState[BlackjackState](st)
	if err != nil {
		return nil, err
	}

	if len(seats) != 1 {
		return nil, apperr.New(apperr.CodeInvalidState, "blackjack needs exactly one player")
	}

	dealt, shoe, err := draw(shuffledDeck(rng), 4)
	if err != nil {
		return nil, err
	}

	s.Player = seats[0]
	s.Shoe = shoe
	s.PlayerHand = []Card{dealt[0], dealt[2]}
	s.DealerHand = []Card{dealt[1], dealt[3]}
	s.PlayerTotal = HandTotal(s.PlayerHand)
	s.DealerTotal = HandTotal(s.DealerHand)
	s.Status = StatusLive

	return s, nil
}

func (Blackjack) Apply(st State, act Action, _ *rand.Rand) (State, error) {
	s, err := castState[BlackjackState](st)
	if err != nil {
		return nil, err
	}

	err = requireLive(s.Outcome)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case "hit":
		card, shoe, err := draw(s.Shoe, 1)
		if err != nil {
			return nil, fmt.Errorf("hit: %w", err)
		}

		s.Shoe = shoe
		s.PlayerHand = append(slices.Clone(s.PlayerHand), card...)
		s.PlayerTotal = HandTotal(s.PlayerHand)

		if s.PlayerTotal > 21 {
			s.Status = StatusFinished
			s.Result = ResultLoss
		}

		return s, nil
	case "stand":
		dealer := slices.Clone(s.DealerHand)
		shoe := s.Shoe

		for HandTotal(dealer) < dealerStandsOn {
			var card []Card

			card, shoe, err = draw(shoe, 1)
			if err != nil {
				return nil, fmt.Errorf("dealer draw: %w", err)
			}

			dealer = append(dealer, card...)
		}

		s.Shoe = shoe
		s.DealerHand = dealer
		s.DealerTotal = HandTotal(dealer)
		s.Status = StatusFinished

		switch {
		case s.DealerTotal > 21 || s.PlayerTotal > s.DealerTotal:
			s.Result = ResultWin
		case s.PlayerTotal == s.DealerTotal:
			s.Result = ResultPush
		default:
			s.Result = ResultLoss
		}

		return s, nil
	default:
		return nil, unknownAction(act.Name)
	}
}

func (Blackjack) Payouts(st State, _ Action) []Transfer {
	s, ok := st.(BlackjackState)
	if !ok || s.Status != StatusFinished {
		return nil
	}

	switch s.Result {
	case ResultWin:
		return []Transfer{{UserID: s.Player, Amount: 2 * s.Stake, Reason: "payout", Metadata: map[string]any{"result": s.Result}}}
	case ResultPush:
		return []Transfer{{UserID: s.Player, Amount: s.Stake, Reason: "payout", Metadata: map[string]any{"result": s.Result}}}
	default:
		return nil
	}
}

func (Blackjack) Abort(st State) (State, []Transfer) {
	s, ok := st.(BlackjackState)
	if !ok {
		return st, nil
	}

	return abortSingleStake(s.Outcome, s.Player, s.Stake, func(o Outcome) State {
		s.Outcome = o
		return s
	})
}

// BlackjackView is the public blackjack state.
type BlackjackView struct {
	Outcome
	Stake       int64   `json:"stake"`
	PlayerHand  []Card  `json:"player_hand"`
	PlayerTotal int     `json:"player_total"`
	DealerHand  []*Card `json:"dealer_hand"`
	DealerTotal *int    `json:"dealer_total,omitempty"`
}

// View hides the dealer hole card from the player until the hand is over.
func (Blackjack) View(st State, role Role) any {
	s, ok := st.(BlackjackState)
	if !ok {
		return nil
	}

	reveal := role == RoleHost || s.Status == StatusFinished

	view := BlackjackView{
		Outcome:     s.Outcome,
		Stake:       s.Stake,
		PlayerHand:  s.PlayerHand,
		PlayerTotal: s.PlayerTotal,
		DealerHand:  make([]*Card, len(s.DealerHand)),
	}

	for i := range s.DealerHand {
		if i == 1 && !reveal {
			continue
		}

		c := s.DealerHand[i]
		view.DealerHand[i] = &c
	}

	if reveal {
		total := s.DealerTotal
		view.DealerTotal = &total
	}

	return view
}

// HandTotal scores a blackjack hand: aces count 11, demoted to 1 one at a
// time while the total exceeds 21; face cards count 10.
func HandTotal(cards []Card) int {
	total, aces := 0, 0

	for _, c := range cards {
		switch {
		case c.Rank == Ace:
			total += 11
			aces++
		case c.Rank >= 10:
			total += 10
		default:
			total += int(c.Rank)
		}
	}

	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}

	return total
}

// abortSingleStake cancels a one-player game, refunding the stake when it was
// taken and not yet resolved.
func abortSingleStake(o Outcome, player string, stake int64, set func(Outcome) State) (State, []Transfer) {
	if o.Status == StatusFinished {
		return set(o), nil
	}

	var refunds []Transfer
	if o.Status == StatusLive && player != "" && stake > 0 {
		refunds = []Transfer{{UserID: player, Amount: stake, Reason: "refund"}}
	}

	return set(Outcome{Status: StatusFinished, Result: ResultCancelled}), refunds
}
