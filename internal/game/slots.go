package game

import (
	"math/rand/v2"
	"strings"

	"github.com/fastprodman/tablestakes/internal/apperr"
)

// Reel symbols with their weights on each reel.
var reelStrip = []struct {
	symbol string
	weight int
}{
	{"lemon", 5},
	{"cherry", 4},
	{"bell", 3},
	{"bar", 2},
	{"seven", 1},
}

var threeOfAKind = map[string]int64{
	"lemon":  3,
	"cherry": 5,
	"bell":   10,
	"bar":    20,
	"seven":  50,
}

const twoCherries = 2

// SlotsState accumulates spins; the game stays live until finished or broke.
type SlotsState struct {
	Outcome
	Stake          int64     `json:"stake"`
	Spins          int       `json:"spins"`
	LastNonce      string    `json:"last_nonce,omitempty"`
	LastReels      [3]string `json:"last_reels"`
	LastMultiplier int64     `json:"last_multiplier"`
	TotalWagered   int64     `json:"total_wagered"`
	TotalPaid      int64     `json:"total_paid"`
}

// Slots is a three-reel machine. Each spin is debited and paid by nonce.
type Slots struct{}

func (Slots) Kind() Kind   { return KindSlots }
func (Slots) Seats() Seats { return Seats{Max: 1} }

func (Slots) Init(stake int64) (State, error) {
	if stake <= 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "slots needs a positive stake")
	}

	return SlotsState{Outcome: Outcome{Status: StatusCreated}, Stake: stake}, nil
}

func (Slots) Decode(raw []byte) (State, error) {
	return decodeState[SlotsState](raw)
}

func (Slots) Rule(action string) (Rule, bool) {
	if action == "spin" {
		return Rule{Role: RolePlayer, Resolves: true}, true
	}

	return Rule{}, false
}

type noncePayload struct {
	Nonce string `json:"nonce"`
}

func spinNonce(act Action) (string, error) {
	var p noncePayload

	err := decodePayload(act.Payload, &p)
	if err != nil {
		return "", err
	}

	nonce := strings.TrimSpace(p.Nonce)
	if nonce == "" {
		return "", apperr.New(apperr.CodeInvalidAction, "spin requires a nonce")
	}

	return nonce, nil
}

func (Slots) Stakes(st State, act Action) ([]Transfer, error) {
	s, err := castState[SlotsState](st)
	if err != nil {
		return nil, err
	}

	switch act.Name {
	case ActionStart:
		return nil, nil
	case "spin":
		err = requireLive(s.Outcome)
		if err != nil {
			return nil, err
		}

		nonce, err := spinNonce(act)
		if err != nil {
			return nil, err
		}

		return []Transfer{{
			UserID:   act.Actor,
			Amount:   -s.Stake,
			Reason:   "spin:" + nonce + ":stake",
			Metadata: map[string]any{"nonce": nonce},
		}}, nil
	default:
		return nil, unknownAction(act.Name)
	}
}

func (Slots) Start(st State, seats []string, _ *rand.Rand) (State, error) {
	s, err := castState[SlotsState](st)
	if err != nil {
		return nil, err
	}

	if len(seats) != 1 {
		return nil, apperr.New(apperr.CodeInvalidState, "slots needs exactly one player")
	}

	s.Status = StatusLive

	return s, nil
}

func (Slots) Apply(st State, act Action, rng *rand.Rand) (State, error) {
	s, err := castState[SlotsState](st)
	if err != nil {
		return nil, err
	}

	err = requireLive(s.Outcome)
	if err != nil {
		return nil, err
	}

	if act.Name != "spin" {
		return nil, unknownAction(act.Name)
	}

	nonce, err := spinNonce(act)
	if err != nil {
		return nil, err
	}

	var reels [3]string
	for i := range reels {
		reels[i] = spinReel(rng)
	}

	s.Spins++
	s.LastNonce = nonce
	s.LastReels = reels
	s.LastMultiplier = SlotsMultiplier(reels)
	s.TotalWagered += s.Stake
	s.TotalPaid += s.Stake * s.LastMultiplier

	return s, nil
}

func spinReel(rng *rand.Rand) string {
	total := 0
	for _, r := range reelStrip {
		total += r.weight
	}

	n := rng.IntN(total)
	for _, r := range reelStrip {
		if n < r.weight {
			return r.symbol
		}

		n -= r.weight
	}

	return reelStrip[len(reelStrip)-1].symbol
}

// SlotsMultiplier returns the pay multiplier for a reel result.
func SlotsMultiplier(reels [3]string) int64 {
	if reels[0] == reels[1] && reels[1] == reels[2] {
		return threeOfAKind[reels[0]]
	}

	cherries := 0
	for _, r := range reels {
		if r == "cherry" {
			cherries++
		}
	}

	if cherries == 2 {
		return twoCherries
	}

	return 0
}

func (Slots) Payouts(st State, act Action) []Transfer {
	s, ok := st.(SlotsState)
	if !ok || act.Name != "spin" || s.LastMultiplier == 0 {
		return nil
	}

	return []Transfer{{
		UserID:   act.Actor,
		Amount:   s.Stake * s.LastMultiplier,
		Reason:   "spin:" + s.LastNonce + ":payout",
		Metadata: map[string]any{"nonce": s.LastNonce, "reels": s.LastReels, "multiplier": s.LastMultiplier},
	}}
}

func (Slots) Abort(st State) (State, []Transfer) {
	s, ok := st.(SlotsState)
	if !ok {
		return st, nil
	}

	if s.Status == StatusFinished {
		return s, nil
	}

	s.Status = StatusFinished

	switch {
	case s.Spins == 0:
		s.Result = ResultCancelled
	case s.TotalPaid > s.TotalWagered:
		s.Result = ResultWin
	case s.TotalPaid < s.TotalWagered:
		s.Result = ResultLoss
	default:
		s.Result = ResultPush
	}

	return s, nil
}

func (Slots) View(st State, _ Role) any {
	s, ok := st.(SlotsState)
	if !ok {
		return nil
	}

	return s
}
