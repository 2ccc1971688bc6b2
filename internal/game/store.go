// internal/game/store.go
package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrExists is returned by Store.CreateGame when the game ID is taken.
var ErrExists = errors.New("game already exists")

// Txn is one operation's consistent view of a single game's documents.
// Reads observe the committed state as of the start of the transaction;
// staged writes and appended actions become visible all at once on commit,
// or not at all. Appended actions receive strictly increasing order keys,
// continuing the game's committed sequence.
type Txn interface {
	// Game returns the game document, or a not-found Error.
	Game() (*Game, error)
	// InternalState returns the deck/trash document, or a not-found Error.
	InternalState() (*InternalState, error)
	// Hands returns every player's hand. Players with no card map to NoCard.
	Hands() (map[uuid.UUID]Card, error)

	SetGame(*Game)
	SetInternalState(*InternalState)
	SetHand(player uuid.UUID, card Card)
	Append(actions ...Action)
}

// Store is the storage gateway: atomic read-modify-write transactions scoped
// to one game. Two concurrent updates of the same game serialize; updates of
// different games are independent.
type Store interface {
	// CreateGame persists a brand-new game document, failing with ErrExists
	// if the ID is taken.
	CreateGame(ctx context.Context, g *Game) error

	// Update runs fn inside one atomic transaction against the named game
	// and returns the actions committed by it, with order keys assigned.
	// If fn returns an error, nothing is written and the error propagates
	// unchanged.
	Update(ctx context.Context, gameID string, fn func(tx Txn) error) ([]Action, error)

	// GetGame fetches the game document outside any transaction.
	GetGame(ctx context.Context, gameID string) (*Game, error)

	// Actions returns the committed log for a game in order-key order.
	Actions(ctx context.Context, gameID string) ([]Action, error)

	// DeleteGame removes the game and all owned documents.
	DeleteGame(ctx context.Context, gameID string) error
}

// Notifier delivers actions after commit. Delivery is best-effort and
// at-least-once; a failed or delayed delivery never affects committed game
// state.
type Notifier interface {
	// PublishActions fans committed public actions out to log consumers.
	PublishActions(ctx context.Context, gameID string, actions []Action)
	// NotifyPlayer delivers a private action to a single player.
	NotifyPlayer(ctx context.Context, gameID string, player uuid.UUID, action Action)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) PublishActions(context.Context, string, []Action) {}

func (NopNotifier) NotifyPlayer(context.Context, string, uuid.UUID, Action) {}
