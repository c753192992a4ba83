package game

import (
	"fmt"
	"math/rand/v2"
)

// Suit of a playing card, 0..3.
type Suit uint8

const (
	Club Suit = iota
	Diamond
	Heart
	Spade
)

// Face card and ace ranks. Number cards use their face value.
const (
	Ace   uint8 = 1
	Jack  uint8 = 11
	Queen uint8 = 12
	King  uint8 = 13
)

// Card is a playing card. Rank is 1..13 with Ace = 1.
type Card struct {
	Rank uint8 `json:"rank"`
	Suit Suit  `json:"suit"`
}

func (c Card) String() string {
	var rank string

	switch c.Rank {
	case Ace:
		rank = "A"
	case Jack:
		rank = "J"
	case Queen:
		rank = "Q"
	case King:
		rank = "K"
	default:
		rank = fmt.Sprintf("%d", c.Rank)
	}

	switch c.Suit {
	case Club:
		return rank + "♣"
	case Diamond:
		return rank + "♦"
	case Heart:
		return rank + "♥"
	case Spade:
		return rank + "♠"
	default:
		return rank + "?"
	}
}

// highRank ranks the ace above the king.
func (c Card) highRank() int {
	if c.Rank == Ace {
		return 14
	}

	return int(c.Rank)
}

func newDeck() []Card {
	deck := make([]Card, 0, 52)
	for s := Club; s <= Spade; s++ {
		for r := Ace; r <= King; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}

	return deck
}

func shuffledDeck(rng *rand.Rand) []Card {
	deck := newDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	return deck
}

// draw pops n cards from the front of the shoe.
func draw(shoe []Card, n int) ([]Card, []Card, error) {
	if len(shoe) < n {
		return nil, shoe, fmt.Errorf("shoe exhausted: want %d, have %d", n, len(shoe))
	}

	out := make([]Card, n)
	copy(out, shoe[:n])

	return out, shoe[n:], nil
}
