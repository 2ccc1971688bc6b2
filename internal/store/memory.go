// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/modiplay/modi-server/internal/game"
)

// MemoryStore is an in-process Storage Gateway. It gives each game its own
// lock, so updates to one game serialize while different games proceed in
// parallel. Used by tests and single-node development.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*memGame
}

type memGame struct {
	mu      sync.Mutex
	game    game.Game
	state   *game.InternalState
	hands   map[uuid.UUID]game.Card
	actions []game.Action
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: map[string]*memGame{}}
}

func (s *MemoryStore) CreateGame(ctx context.Context, g *game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return game.ErrExists
	}
	s.games[g.ID] = &memGame{
		game:  *copyGame(g),
		hands: map[uuid.UUID]game.Card{},
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, gameID string, fn func(tx game.Txn) error) ([]game.Action, error) {
	s.mu.RLock()
	rec, ok := s.games[gameID]
	s.mu.RUnlock()
	if !ok {
		return nil, game.Errorf(game.KindNotFound, "game %s not found", gameID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	tx := &memTxn{rec: rec, hands: map[uuid.UUID]game.Card{}}
	if err := fn(tx); err != nil {
		return nil, err
	}

	// Commit: assign order keys continuing the game's committed sequence,
	// then apply every staged write at once.
	g := tx.game
	if g == nil {
		g = copyGame(&rec.game)
	}
	for i := range tx.appended {
		tx.appended[i].OrderKey = g.ActionCount
		g.ActionCount++
	}
	rec.game = *copyGame(g)
	if tx.state != nil {
		rec.state = copyState(tx.state)
	}
	for pid, card := range tx.hands {
		rec.hands[pid] = card
	}
	rec.actions = append(rec.actions, tx.appended...)

	committed := make([]game.Action, len(tx.appended))
	copy(committed, tx.appended)
	return committed, nil
}

func (s *MemoryStore) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	s.mu.RLock()
	rec, ok := s.games[gameID]
	s.mu.RUnlock()
	if !ok {
		return nil, game.Errorf(game.KindNotFound, "game %s not found", gameID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return copyGame(&rec.game), nil
}

func (s *MemoryStore) Actions(ctx context.Context, gameID string) ([]game.Action, error) {
	s.mu.RLock()
	rec, ok := s.games[gameID]
	s.mu.RUnlock()
	if !ok {
		return nil, game.Errorf(game.KindNotFound, "game %s not found", gameID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]game.Action, len(rec.actions))
	copy(out, rec.actions)
	return out, nil
}

func (s *MemoryStore) DeleteGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, gameID)
	return nil
}

// memTxn reads committed state and stages writes. Reads return copies, so an
// aborted transaction can never leak partial mutations.
type memTxn struct {
	rec *memGame

	game     *game.Game
	state    *game.InternalState
	hands    map[uuid.UUID]game.Card
	appended []game.Action
}

func (tx *memTxn) Game() (*game.Game, error) {
	return copyGame(&tx.rec.game), nil
}

func (tx *memTxn) InternalState() (*game.InternalState, error) {
	if tx.rec.state == nil {
		return nil, game.Errorf(game.KindNotFound, "game internal state not found")
	}
	return copyState(tx.rec.state), nil
}

func (tx *memTxn) Hands() (map[uuid.UUID]game.Card, error) {
	hands := make(map[uuid.UUID]game.Card, len(tx.rec.hands))
	for pid, card := range tx.rec.hands {
		hands[pid] = card
	}
	return hands, nil
}

func (tx *memTxn) SetGame(g *game.Game) { tx.game = g }

func (tx *memTxn) SetInternalState(s *game.InternalState) { tx.state = s }

func (tx *memTxn) SetHand(pid uuid.UUID, card game.Card) { tx.hands[pid] = card }

func (tx *memTxn) Append(actions ...game.Action) { tx.appended = append(tx.appended, actions...) }

func copyGame(g *game.Game) *game.Game {
	out := *g
	out.Players = append([]uuid.UUID(nil), g.Players...)
	out.Winners = append([]uuid.UUID(nil), g.Winners...)
	if g.Names != nil {
		out.Names = make(map[uuid.UUID]string, len(g.Names))
		for k, v := range g.Names {
			out.Names[k] = v
		}
	}
	if g.Lives != nil {
		out.Lives = make(map[uuid.UUID]int, len(g.Lives))
		for k, v := range g.Lives {
			out.Lives[k] = v
		}
	}
	return &out
}

func copyState(s *game.InternalState) *game.InternalState {
	return &game.InternalState{
		Deck:  append([]game.Card(nil), s.Deck...),
		Trash: append([]game.Card(nil), s.Trash...),
	}
}
