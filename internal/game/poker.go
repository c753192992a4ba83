package game

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/fastprodman/tablestakes/internal/apperr"
	"github.com/paulhankin/poker"
)

// HandRank is a five-card poker category.
type HandRank string

const (
	RankHighCard      HandRank = "high_card"
	RankPair          HandRank = "pair"
	RankTwoPair       HandRank = "two_pair"
	RankThreeKind     HandRank = "three_kind"
	RankStraight      HandRank = "straight"
	RankFlush         HandRank = "flush"
	RankFullHouse     HandRank = "full_house"
	RankFourKind      HandRank = "four_kind"
	RankStraightFlush HandRank = "straight_flush"
)

// Payout multipliers per category; a hand wins iff its multiplier is positive.
var pokerMultipliers = map[HandRank]int64{
	RankStraightFlush: 20,
	RankFourKind:      10,
	RankFullHouse:     6,
	RankFlush:         5,
	RankStraight:      4,
	RankThreeKind:     3,
	RankTwoPair:       2,
	RankPair:          1,
	RankHighCard:      0,
}

// PokerState is a single five-card draw hand.
type PokerState struct {
	Outcome
	Stake      int64    `json:"stake"`
	Player     string   `json:"player"`
	Shoe       []Card   `json:"shoe"`
	Hand       []Card   `json:"hand"`
	Held       [5]bool  `json:"held"`
	Drawn      bool     `json:"drawn"`
	Rank       HandRank `json:"rank,omitempty"`
	Multiplier int64    `json:"multiplier"`
	Score      int16    `json:"score,omitempty"`
}

// Poker is five-card draw against a pay table.
type Poker struct{}

func (Poker) Kind() Kind   { return KindPoker }
func (Poker) Seats() Seats { return Seats{Max: 1} }

func (Poker) Init(stake int64) (State, error) {
	return PokerState{Outcome: Outcome{Status: StatusCreated}, Stake: stake}, nil
}

func (Poker) Decode(raw []byte) (State, error) {
	return decodeState[PokerState](raw)
}

func (Poker) Rule(action string) (Rule, bool) {
	switch action {
	case "hold":
		return Rule{Role: RolePlayer}, true
	case "draw":
		return Rule{Role: RolePlayer, Resolves: true}, true
	default:
		return Rule{}, false
	}
}

func (Poker) Stakes(st State, act Action) ([]Transfer, error) {
	s, err := castState[PokerState](st)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case ActionStart:
		return []Transfer{{UserID: act.Actor, Amount: -s.Stake, Reason: "stake"}}, nil
	case "hold", "draw":
		return nil, requireLive(s.Outcome)
	default:
		return nil, unknownAction(act.Name)
	}
}

func (Poker) Start(st State, seats []string, rng *rand.Rand) (State, error) {
	s, err := castState[PokerState](st)
	if err != nil {
		return nil, err
	}

	if len(seats) != 1 {
		return nil, apperr.New(apperr.CodeInvalidState, "poker needs exactly one player")
	}

	hand, shoe, err := draw(shuffledDeck(rng), 5)
	if err != nil {
		return nil, err
	}

	s.Player = seats[0]
	s.Hand = hand
	s.Shoe = shoe
	s.Status = StatusLive

	return s, nil
}

type holdPayload struct {
	Mask []bool `json:"mask"`
}

func (Poker) Apply(st State, act Action, _ *rand.Rand) (State, error) {
	s, err := castState[PokerState](st)
	if err != nil {
		return nil, err
	}

	err = requireLive(s.Outcome)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case "hold":
		var p holdPayload

		err = decodePayload(act.Payload, &p)
		if err != nil {
			return nil, err
		}

		if len(p.Mask) != 5 {
			return nil, apperr.New(apperr.CodeInvalidAction, "hold mask must have 5 entries")
		}

		copy(s.Held[:], p.Mask)

		return s, nil
	case "draw":
		if s.Drawn {
			return nil, apperr.New(apperr.CodeInvalidAction, "already drawn")
		}

		hand := slices.Clone(s.Hand)
		shoe := s.Shoe

		for i := range hand {
			if s.Held[i] {
				continue
			}

			var card []Card

			card, shoe, err = draw(shoe, 1)
			if err != nil {
				return nil, fmt.Errorf("draw: %w", err)
			}

			hand[i] = card[0]
		}

		score, err := HandScore(hand)
		if err != nil {
			return nil, err
		}

		s.Hand = hand
		s.Shoe = shoe
		s.Drawn = true
		s.Score = score
		s.Rank = rankOf(score)
		s.Multiplier = pokerMultipliers[s.Rank]
		s.Status = StatusFinished

		if s.Multiplier > 0 {
			s.Result = ResultWin
		} else {
			s.Result = ResultLoss
		}

		return s, nil
	default:
		return nil, unknownAction(act.Name)
	}
}

func (Poker) Payouts(st State, _ Action) []Transfer {
	s, ok := st.(PokerState)
	if !ok || s.Status != StatusFinished || s.Result != ResultWin {
		return nil
	}

	return []Transfer{{
		UserID:   s.Player,
		Amount:   s.Stake * s.Multiplier,
		Reason:   "payout",
		Metadata: map[string]any{"rank": s.Rank, "score": s.Score, "multiplier": s.Multiplier},
	}}
}

func (Poker) Abort(st State) (State, []Transfer) {
	s, ok := st.(PokerState)
	if !ok {
		return st, nil
	}

	return abortSingleStake(s.Outcome, s.Player, s.Stake, func(o Outcome) State {
		s.Outcome = o
		return s
	})
}

// PokerView is the public poker state. The shoe is never shown.
type PokerView struct {
	Outcome
	Stake      int64    `json:"stake"`
	Hand       []Card   `json:"hand"`
	Held       [5]bool  `json:"held"`
	Drawn      bool     `json:"drawn"`
	Rank       HandRank `json:"rank,omitempty"`
	Multiplier int64    `json:"multiplier"`
	Score      int16    `json:"score,omitempty"`
}

func (Poker) View(st State, _ Role) any {
	s, ok := st.(PokerState)
	if !ok {
		return nil
	}

	return PokerView{
		Outcome:    s.Outcome,
		Stake:      s.Stake,
		Hand:       s.Hand,
		Held:       s.Held,
		Drawn:      s.Drawn,
		Rank:       s.Rank,
		Multiplier: s.Multiplier,
		Score:      s.Score,
	}
}

// rankFloors pairs each category with the evaluator score of its weakest
// hand, strongest first. A-2-3-4-5 is the weakest straight.
var rankFloors = []struct {
	rank  HandRank
	score int16
}{
	{RankStraightFlush, floorScore(true, Ace, 2, 3, 4, 5)},
	{RankFourKind, floorScore(false, 2, 2, 2, 2, 3)},
	{RankFullHouse, floorScore(false, 2, 2, 2, 3, 3)},
	{RankFlush, floorScore(true, 2, 3, 4, 5, 7)},
	{RankStraight, floorScore(false, Ace, 2, 3, 4, 5)},
	{RankThreeKind, floorScore(false, 2, 2, 2, 3, 4)},
	{RankTwoPair, floorScore(false, 2, 2, 3, 3, 4)},
	{RankPair, floorScore(false, 2, 2, 3, 4, 5)},
}

func floorScore(suited bool, ranks ...uint8) int16 {
	hand := make([]Card, len(ranks))
	for i, r := range ranks {
		suit := Suit(i % 4)
		if suited {
			suit = Club
		}

		hand[i] = Card{Rank: r, Suit: suit}
	}

	score, err := HandScore(hand)
	if err != nil {
		panic(err)
	}

	return score
}

// RankHand classifies exactly five distinct cards.
func RankHand(hand []Card) (HandRank, error) {
	score, err := HandScore(hand)
	if err != nil {
		return "", err
	}

	return rankOf(score), nil
}

func rankOf(score int16) HandRank {
	for _, f := range rankFloors {
		if score >= f.score {
			return f.rank
		}
	}

	return RankHighCard
}

// HandScore is the evaluator score of five distinct cards, higher is better.
func HandScore(hand []Card) (int16, error) {
	if len(hand) != 5 {
		return 0, apperr.New(apperr.CodeInvalidAction, fmt.Sprintf("hand has %d cards", len(hand)))
	}

	var cards [5]poker.Card

	for i, c := range hand {
		pc, err := poker.MakeCard(poker.Suit(c.Suit), poker.Rank(c.Rank))
		if err != nil {
			return 0, apperr.Wrap(apperr.CodeInvalidAction, "bad card "+c.String(), err)
		}

		// the evaluator table has no entry for a repeated card
		if slices.Contains(cards[:i], pc) {
			return 0, apperr.New(apperr.CodeInvalidAction, "duplicate card "+c.String())
		}

		cards[i] = pc
	}

	return poker.Eval5(&cards), nil
}
