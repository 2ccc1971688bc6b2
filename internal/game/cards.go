// internal/game/cards.go
package game

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Card is a two-part card code: rank ("2"-"10", "J", "Q", "K", "A")
// followed by suit ("H", "D", "C", "S"), e.g. "AH" or "10S".
// The empty string means "no card".
type Card string

// NoCard is the empty hand value.
const NoCard Card = ""

var suits = []string{"H", "D", "C", "S"}
var ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// rankValues orders ranks for the lowest-card tally: Ace is always low.
var rankValues = map[string]int{
	"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
	"8": 8, "9": 9, "10": 10, "J": 11, "Q": 12, "K": 13,
}

// Rank returns the rank portion of the card code.
func (c Card) Rank() string {
	if len(c) < 2 {
		return ""
	}
	return string(c[:len(c)-1])
}

// Suit returns the suit portion of the card code.
func (c Card) Suit() string {
	if len(c) < 2 {
		return ""
	}
	return string(c[len(c)-1])
}

// Value returns the tally value of the card (A=1 ... K=13), or 0 for NoCard
// or a malformed code.
func (c Card) Value() int {
	return rankValues[c.Rank()]
}

// IsKing reports whether the card is a King of any suit. Kings are protected:
// a swap attempt into a King is blocked (a "kung") and a dealer holding a King
// may not draw.
func (c Card) IsKing() bool {
	return strings.HasPrefix(string(c), "K")
}

// NewDeck returns the full 52-card universe in a fixed order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, Card(r+s))
		}
	}
	return deck
}

// shuffleCards is a Fisher-Yates shuffle in place.
func shuffleCards(cards []Card) {
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// lowestHolders returns every player whose revealed card ties the minimum
// rank value. Revealed hands only ever contain players with lives remaining,
// so eliminated players never participate in a tally.
func lowestHolders(revealed map[uuid.UUID]Card) []uuid.UUID {
	lowest := 0
	for _, c := range revealed {
		if v := c.Value(); lowest == 0 || v < lowest {
			lowest = v
		}
	}
	var losers []uuid.UUID
	for pid, c := range revealed {
		if c.Value() == lowest {
			losers = append(losers, pid)
		}
	}
	return losers
}
