// internal/game/engine.go
package game

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine is the game state machine. Every operation loads current state
// through the Store, computes the full next state and action set in memory,
// then commits exactly one atomic transaction. The Engine keeps no game
// state between calls.
type Engine struct {
	store    Store
	notifier Notifier
	log      *logrus.Logger

	// Shuffle randomizes a pile in place. Swappable so tests can deal
	// deterministically.
	Shuffle func([]Card)
}

// NewEngine builds an Engine. notifier may be nil to disable delivery.
func NewEngine(store Store, notifier Notifier, logger *logrus.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		log:      logger,
		Shuffle:  shuffleCards,
	}
}

// CreateGame makes a new gathering-players game with the caller as host and
// sole player, returning its join code.
func (e *Engine) CreateGame(ctx context.Context, host uuid.UUID, name string) (*Game, error) {
	if name == "" {
		return nil, Errorf(KindInvalidArgument, "display name is required")
	}
	for attempt := 0; attempt < 10; attempt++ {
		g := &Game{
			ID:           newGameID(),
			Players:      []uuid.UUID{host},
			Host:         host,
			Names:        map[uuid.UUID]string{host: name},
			Status:       StatusGatheringPlayers,
			InitialLives: StartingLives,
		}
		err := e.store.CreateGame(ctx, g)
		if err == ErrExists {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create game: %w", err)
		}
		e.log.WithFields(logrus.Fields{"game_id": g.ID, "host": host}).Info("game created")
		return g, nil
	}
	return nil, Errorf(KindInternal, "could not allocate a game id")
}

// JoinGame adds the caller to a gathering-players game. Joining a game you
// are already in is a no-op.
func (e *Engine) JoinGame(ctx context.Context, gameID string, caller uuid.UUID, name string) error {
	if name == "" {
		return Errorf(KindInvalidArgument, "display name is required")
	}
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != StatusGatheringPlayers {
			return Errorf(KindFailedPrecondition, "game is not accepting players")
		}
		if g.HasPlayer(caller) {
			return nil
		}
		g.Players = append(g.Players, caller)
		g.Names[caller] = name
		tx.SetGame(g)
		tx.Append(playerJoinedAction(caller, name))
		return nil
	})
	if err != nil {
		return err
	}
	e.notifier.PublishActions(ctx, gameID, committed)
	return nil
}

// LeaveGame removes the caller. Before the game starts the player drops from
// the list; a leaving host hands the role to the next seat, and the last
// player out deletes the game. During an active game the player is eliminated
// in place: lives to zero, any held card to trash, and the dealer /
// active-player roles rotate off them.
func (e *Engine) LeaveGame(ctx context.Context, gameID string, caller uuid.UUID) error {
	deleteEmpty := false
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if !g.HasPlayer(caller) {
			return Errorf(KindFailedPrecondition, "you are not in this game")
		}
		name := g.Names[caller]

		switch g.Status {
		case StatusGatheringPlayers:
			kept := g.Players[:0]
			for _, p := range g.Players {
				if p != caller {
					kept = append(kept, p)
				}
			}
			g.Players = kept
			delete(g.Names, caller)
			deleteEmpty = len(g.Players) == 0
			if g.Host == caller && !deleteEmpty {
				g.Host = g.Players[0]
			}
			tx.SetGame(g)
			tx.Append(playerLeftAction(caller, name))
			return nil

		case StatusActive:
			state, err := tx.InternalState()
			if err != nil {
				return err
			}
			hands, err := tx.Hands()
			if err != nil {
				return err
			}
			if card := hands[caller]; card != NoCard {
				state.Trash = append(state.Trash, card)
				tx.SetHand(caller, NoCard)
				tx.SetInternalState(state)
			}
			g.Lives[caller] = 0
			if alive := g.AlivePlayers(); len(alive) <= 1 {
				g.Status = StatusEnded
				g.Winners = alive
				g.Dealer = uuid.Nil
				g.ActivePlayer = uuid.Nil
				tx.SetGame(g)
				tx.Append(playerLeftAction(caller, name))
				return nil
			}
			if g.Dealer == caller {
				next, ok := g.nextAlive(caller)
				if !ok {
					return Errorf(KindFailedPrecondition, "no players with lives remaining")
				}
				g.Dealer = next
			}
			if g.ActivePlayer == caller {
				next, ok := g.nextAlive(caller)
				if !ok {
					return Errorf(KindFailedPrecondition, "no players with lives remaining")
				}
				g.ActivePlayer = next
			}
			tx.SetGame(g)
			tx.Append(playerLeftAction(caller, name))
			return nil

		default:
			return Errorf(KindFailedPrecondition, "game has already ended")
		}
	})
	if err != nil {
		return err
	}
	if deleteEmpty {
		if err := e.store.DeleteGame(ctx, gameID); err != nil {
			e.log.WithError(err).WithField("game_id", gameID).Warn("delete empty game")
		}
		return nil
	}
	e.notifier.PublishActions(ctx, gameID, committed)
	return nil
}

// SetPlayerOrder lets the host reseat players before the game starts. order
// must be a permutation of the current player list.
func (e *Engine) SetPlayerOrder(ctx context.Context, gameID string, caller uuid.UUID, order []uuid.UUID) error {
	_, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Host != caller {
			return Errorf(KindPermissionDenied, "only the host can reorder players")
		}
		if g.Status != StatusGatheringPlayers {
			return Errorf(KindFailedPrecondition, "players can only be reordered before the game starts")
		}
		if !samePlayers(order, g.Players) {
			return Errorf(KindInvalidArgument, "order must be a permutation of the current players")
		}
		g.Players = append([]uuid.UUID(nil), order...)
		tx.SetGame(g)
		return nil
	})
	return err
}

// UpdateGameSettings lets the host adjust pre-game settings. The only
// setting is the number of starting lives, between MinLives and MaxLives.
func (e *Engine) UpdateGameSettings(ctx context.Context, gameID string, caller uuid.UUID, initialLives int) error {
	_, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Host != caller {
			return Errorf(KindPermissionDenied, "only the host can change game settings")
		}
		if g.Status != StatusGatheringPlayers {
			return Errorf(KindFailedPrecondition, "settings can only be changed before the game starts")
		}
		if initialLives < MinLives || initialLives > MaxLives {
			return Errorf(KindInvalidArgument, "initial lives must be between %d and %d", MinLives, MaxLives)
		}
		g.InitialLives = initialLives
		tx.SetGame(g)
		return nil
	})
	return err
}

// StartGame moves a gathering-players game to active: fresh shuffled deck,
// the configured lives each, host as first dealer and active player, round
// one in pre-deal, empty hands. One transaction creates all documents and
// the GameStarted action.
func (e *Engine) StartGame(ctx context.Context, gameID string, caller uuid.UUID) error {
	committed, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Host != caller {
			return Errorf(KindPermissionDenied, "only the host can start the game")
		}
		if g.Status != StatusGatheringPlayers {
			return Errorf(KindFailedPrecondition, "game is not in a startable state")
		}
		if len(g.Players) < 2 {
			return Errorf(KindFailedPrecondition, "need at least 2 players to start")
		}

		deck := NewDeck()
		e.Shuffle(deck)

		lives := g.InitialLives
		if lives == 0 {
			lives = StartingLives
		}
		g.Status = StatusActive
		g.Lives = make(map[uuid.UUID]int, len(g.Players))
		for _, p := range g.Players {
			g.Lives[p] = lives
		}
		g.Dealer = g.Host
		g.ActivePlayer = g.Host
		g.Round = 1
		g.RoundState = RoundPreDeal

		tx.SetGame(g)
		tx.SetInternalState(&InternalState{Deck: deck, Trash: []Card{}})
		for _, p := range g.Players {
			tx.SetHand(p, NoCard)
		}
		tx.Append(gameStartedAction(caller, g.Host))
		return nil
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"game_id": gameID, "host": caller}).Info("game started")
	e.notifier.PublishActions(ctx, gameID, committed)
	return nil
}

// PlayAgain moves players from an ended game into a successor lobby. The
// first caller creates the next game and links it; later callers join it.
// Returns the next game's ID.
func (e *Engine) PlayAgain(ctx context.Context, gameID string, caller uuid.UUID) (string, error) {
	var nextID string
	var name string
	var initialLives int
	_, err := e.store.Update(ctx, gameID, func(tx Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		if g.Status != StatusEnded {
			return Errorf(KindFailedPrecondition, "game has not ended")
		}
		if !g.HasPlayer(caller) {
			return Errorf(KindPermissionDenied, "you were not in this game")
		}
		name = g.Names[caller]
		initialLives = g.InitialLives
		if g.NextGameID != "" {
			nextID = g.NextGameID
			return nil
		}
		nextID = newGameID()
		g.NextGameID = nextID
		tx.SetGame(g)
		return nil
	})
	if err != nil {
		return "", err
	}

	next, err := e.store.GetGame(ctx, nextID)
	if err != nil && KindOf(err) != KindNotFound {
		return "", err
	}
	if next == nil {
		g := &Game{
			ID:           nextID,
			Players:      []uuid.UUID{caller},
			Host:         caller,
			Names:        map[uuid.UUID]string{caller: name},
			Status:       StatusGatheringPlayers,
			InitialLives: initialLives,
		}
		switch cerr := e.store.CreateGame(ctx, g); cerr {
		case nil:
			return nextID, nil
		case ErrExists:
			// another play-again caller got there first; join below
		default:
			return "", fmt.Errorf("create next game: %w", cerr)
		}
	}
	if err := e.JoinGame(ctx, nextID, caller, name); err != nil {
		return "", err
	}
	return nextID, nil
}

// GetGame exposes the game document for read-only callers.
func (e *Engine) GetGame(ctx context.Context, gameID string) (*Game, error) {
	return e.store.GetGame(ctx, gameID)
}

// Actions exposes the committed log for replay.
func (e *Engine) Actions(ctx context.Context, gameID string) ([]Action, error) {
	return e.store.Actions(ctx, gameID)
}

// newGameID returns a 4-digit join code. Collisions are handled by the
// caller retrying against the store.
func newGameID() string {
	return fmt.Sprintf("%d", 1000+rand.Intn(9000))
}

func samePlayers(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, p := range a {
		seen[p]++
	}
	for _, p := range b {
		seen[p]--
		if seen[p] < 0 {
			return false
		}
	}
	return true
}
