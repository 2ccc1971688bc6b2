// internal/game/cards_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardRankSuitValue(t *testing.T) {
	assert.Equal(t, "A", Card("AH").Rank())
	assert.Equal(t, "H", Card("AH").Suit())
	assert.Equal(t, "10", Card("10S").Rank())
	assert.Equal(t, "S", Card("10S").Suit())

	assert.Equal(t, 1, Card("AH").Value())
	assert.Equal(t, 10, Card("10S").Value())
	assert.Equal(t, 11, Card("JC").Value())
	assert.Equal(t, 13, Card("KD").Value())
	assert.Equal(t, 0, NoCard.Value())
}

func TestIsKing(t *testing.T) {
	assert.True(t, Card("KD").IsKing())
	assert.True(t, Card("KS").IsKing())
	assert.False(t, Card("QD").IsKing())
	assert.False(t, NoCard.IsKing())
}

func TestNewDeckComplete(t *testing.T) {
	deck := NewDeck()
	require.Len(t, deck, 52)

	seen := map[Card]bool{}
	for _, c := range deck {
		assert.NotEmpty(t, c.Rank())
		assert.NotEmpty(t, c.Suit())
		assert.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
}

func TestLowestHoldersTie(t *testing.T) {
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	revealed := map[uuid.UUID]Card{
		p1: "AH",
		p2: "AS",
		p3: "5D",
	}

	losers := lowestHolders(revealed)
	assert.ElementsMatch(t, []uuid.UUID{p1, p2}, losers)
}

func TestLowestHoldersSingle(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	revealed := map[uuid.UUID]Card{
		p1: "KH",
		p2: "2C",
	}

	losers := lowestHolders(revealed)
	assert.Equal(t, []uuid.UUID{p2}, losers)
}

func TestDealingOrder(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	g := &Game{
		Players: []uuid.UUID{a, b, c, d},
		Lives:   map[uuid.UUID]int{a: 3, b: 3, c: 3, d: 3},
		Dealer:  b,
	}

	// Starts left of the dealer, wraps, dealer last.
	assert.Equal(t, []uuid.UUID{c, d, a, b}, g.dealingOrder())

	// Players at zero lives are skipped; a dead dealer is simply absent.
	g.Lives[d] = 0
	assert.Equal(t, []uuid.UUID{c, a, b}, g.dealingOrder())

	g.Lives[b] = 0
	assert.Equal(t, []uuid.UUID{c, a}, g.dealingOrder())
}

func TestNextAlive(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g := &Game{
		Players: []uuid.UUID{a, b, c},
		Lives:   map[uuid.UUID]int{a: 1, b: 0, c: 2},
	}

	next, ok := g.nextAlive(a)
	require.True(t, ok)
	assert.Equal(t, c, next)

	// Walking from the only alive player comes full circle onto itself.
	g.Lives[c] = 0
	next, ok = g.nextAlive(a)
	require.True(t, ok)
	assert.Equal(t, a, next)

	g.Lives[a] = 0
	_, ok = g.nextAlive(a)
	assert.False(t, ok)
}

func TestSamePlayers(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.True(t, samePlayers([]uuid.UUID{c, a, b}, []uuid.UUID{a, b, c}))
	assert.False(t, samePlayers([]uuid.UUID{a, b}, []uuid.UUID{a, b, c}))
	assert.False(t, samePlayers([]uuid.UUID{a, a, b}, []uuid.UUID{a, b, c}))
}
