// internal/store/memory_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modiplay/modi-server/internal/game"
)

func newGame(id string) *game.Game {
	host := uuid.New()
	return &game.Game{
		ID:      id,
		Players: []uuid.UUID{host},
		Host:    host,
		Names:   map[uuid.UUID]string{host: "host"},
		Status:  game.StatusGatheringPlayers,
	}
}

func TestCreateGameDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateGame(ctx, newGame("1234")))
	assert.Equal(t, game.ErrExists, s.CreateGame(ctx, newGame("1234")))
}

func TestGetGameNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetGame(context.Background(), "0000")
	assert.Equal(t, game.KindNotFound, game.KindOf(err))

	_, err = s.Update(context.Background(), "0000", func(tx game.Txn) error { return nil })
	assert.Equal(t, game.KindNotFound, game.KindOf(err))
}

func TestUpdateCommitsAtomically(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	g := newGame("1234")
	player := g.Host
	require.NoError(t, s.CreateGame(ctx, g))

	committed, err := s.Update(ctx, "1234", func(tx game.Txn) error {
		cur, err := tx.Game()
		if err != nil {
			return err
		}
		cur.Status = game.StatusActive
		tx.SetGame(cur)
		tx.SetInternalState(&game.InternalState{Deck: []game.Card{"AH"}, Trash: []game.Card{}})
		tx.SetHand(player, "2H")
		tx.Append(game.Action{ID: uuid.New(), Type: game.ActionGameStarted, Player: player})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, committed, 1)

	got, err := s.GetGame(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, game.StatusActive, got.Status)

	_, err = s.Update(ctx, "1234", func(tx game.Txn) error {
		state, err := tx.InternalState()
		if err != nil {
			return err
		}
		assert.Equal(t, []game.Card{"AH"}, state.Deck)
		hands, err := tx.Hands()
		if err != nil {
			return err
		}
		assert.Equal(t, game.Card("2H"), hands[player])
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateAbortLeavesNoTrace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	g := newGame("1234")
	require.NoError(t, s.CreateGame(ctx, g))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "1234", func(tx game.Txn) error {
		cur, _ := tx.Game()
		cur.Status = game.StatusEnded
		tx.SetGame(cur)
		tx.SetHand(g.Host, "KD")
		tx.Append(game.Action{ID: uuid.New(), Type: game.ActionStick, Player: g.Host})
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetGame(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, game.StatusGatheringPlayers, got.Status)

	actions, err := s.Actions(ctx, "1234")
	require.NoError(t, err)
	assert.Empty(t, actions)
}

// Order keys continue the committed sequence across transactions, strictly
// increasing in emission order.
func TestUpdateAssignsMonotonicOrderKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	g := newGame("1234")
	require.NoError(t, s.CreateGame(ctx, g))

	emit := func(n int) []game.Action {
		t.Helper()
		committed, err := s.Update(ctx, "1234", func(tx game.Txn) error {
			for i := 0; i < n; i++ {
				tx.Append(game.Action{ID: uuid.New(), Type: game.ActionStick, Player: g.Host})
			}
			return nil
		})
		require.NoError(t, err)
		return committed
	}

	first := emit(3)
	second := emit(2)

	require.Len(t, first, 3)
	require.Len(t, second, 2)

	all := append(first, second...)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].OrderKey+1, all[i].OrderKey)
	}

	stored, err := s.Actions(ctx, "1234")
	require.NoError(t, err)
	require.Len(t, stored, 5)
	for i, a := range stored {
		assert.Equal(t, all[i].OrderKey, a.OrderKey)
	}

	got, err := s.GetGame(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ActionCount)
}

// Reads inside a transaction observe committed state, not writes staged
// earlier in the same transaction.
func TestTxnReadsSeeCommittedState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	g := newGame("1234")
	require.NoError(t, s.CreateGame(ctx, g))

	_, err := s.Update(ctx, "1234", func(tx game.Txn) error {
		tx.SetHand(g.Host, "KD")
		hands, err := tx.Hands()
		if err != nil {
			return err
		}
		assert.Equal(t, game.NoCard, hands[g.Host])
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteGame(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateGame(ctx, newGame("1234")))
	require.NoError(t, s.DeleteGame(ctx, "1234"))

	_, err := s.GetGame(ctx, "1234")
	assert.Equal(t, game.KindNotFound, game.KindOf(err))
}

// Mutating a returned snapshot must not leak into the store.
func TestReadsReturnCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	g := newGame("1234")
	require.NoError(t, s.CreateGame(ctx, g))

	got, err := s.GetGame(ctx, "1234")
	require.NoError(t, err)
	got.Status = game.StatusEnded
	got.Names[g.Host] = "mutated"

	again, err := s.GetGame(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, game.StatusGatheringPlayers, again.Status)
	assert.Equal(t, "host", again.Names[g.Host])
}
