// internal/game/state.go
package game

import (
	"github.com/google/uuid"
)

// Status is a game's lifecycle phase.
type Status string

const (
	StatusGatheringPlayers Status = "gathering-players"
	StatusActive           Status = "active"
	StatusEnded            Status = "ended"
)

// RoundState is the phase within one round of an active game.
type RoundState string

const (
	RoundPreDeal  RoundState = "pre-deal"
	RoundPlaying  RoundState = "playing"
	RoundTallying RoundState = "tallying"
)

// StartingLives is the default number of lives per player. The host can
// change it with UpdateGameSettings before the game starts.
const StartingLives = 3

// MinLives and MaxLives bound the host-configurable starting lives.
const (
	MinLives = 1
	MaxLives = 5
)

// Game is the public game document. Dealer and ActivePlayer are uuid.Nil
// unless the game is active; when set they are always members of Players
// and held at least one life at the moment they were assigned the role.
type Game struct {
	ID      string               `json:"id"`
	Players []uuid.UUID          `json:"players"`
	Host    uuid.UUID            `json:"host"`
	Names   map[uuid.UUID]string `json:"names"`
	Status  Status               `json:"status"`

	// InitialLives is the lives each player starts with. Set at creation,
	// host-adjustable while gathering players.
	InitialLives int `json:"initialLives"`

	Lives        map[uuid.UUID]int `json:"lives,omitempty"`
	Dealer       uuid.UUID         `json:"dealer,omitempty"`
	ActivePlayer uuid.UUID         `json:"activePlayer,omitempty"`
	Round        int               `json:"round,omitempty"`
	RoundState   RoundState        `json:"roundState,omitempty"`

	Winners []uuid.UUID `json:"winners,omitempty"`

	// NextGameID links an ended game to its play-again successor.
	NextGameID string `json:"nextGameId,omitempty"`

	// ActionCount is the next action order key; maintained by the store.
	ActionCount int64 `json:"actionCount"`
}

// InternalState holds the hidden deck and trash pile. The top of the deck is
// the last element. The multiset union of deck, trash and all hands is the
// fixed 52-card universe.
type InternalState struct {
	Deck  []Card `json:"deck"`
	Trash []Card `json:"trash"`
}

// HasPlayer reports membership in the player list.
func (g *Game) HasPlayer(id uuid.UUID) bool {
	for _, p := range g.Players {
		if p == id {
			return true
		}
	}
	return false
}

// AlivePlayers returns the players with at least one life, in seating order.
func (g *Game) AlivePlayers() []uuid.UUID {
	var alive []uuid.UUID
	for _, p := range g.Players {
		if g.Lives[p] > 0 {
			alive = append(alive, p)
		}
	}
	return alive
}

// playerIndex returns the seat index of id, or -1.
func (g *Game) playerIndex(id uuid.UUID) int {
	for i, p := range g.Players {
		if p == id {
			return i
		}
	}
	return -1
}

// nextAlive walks circularly left (ascending seat order) from the seat after
// `from` and returns the first player with lives remaining, excluding `from`
// itself unless the walk comes full circle onto it.
func (g *Game) nextAlive(from uuid.UUID) (uuid.UUID, bool) {
	start := g.playerIndex(from)
	if start == -1 {
		return uuid.Nil, false
	}
	for i := 1; i <= len(g.Players); i++ {
		p := g.Players[(start+i)%len(g.Players)]
		if g.Lives[p] > 0 {
			return p, true
		}
	}
	return uuid.Nil, false
}

// dealingOrder walks circularly left from the dealer through every seat once,
// keeping players with lives remaining. The first entry is the player left of
// the dealer; the dealer, if alive, is always last.
func (g *Game) dealingOrder() []uuid.UUID {
	start := g.playerIndex(g.Dealer)
	if start == -1 {
		return nil
	}
	var order []uuid.UUID
	for i := 1; i <= len(g.Players); i++ {
		p := g.Players[(start+i)%len(g.Players)]
		if g.Lives[p] > 0 {
			order = append(order, p)
		}
	}
	return order
}
