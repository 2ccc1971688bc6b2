// internal/game/engine_test.go
package game_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modiplay/modi-server/internal/game"
	"github.com/modiplay/modi-server/internal/store"
)

// recordingNotifier captures deliveries so tests can assert on the fan-out.
type recordingNotifier struct {
	mu      sync.Mutex
	public  []game.Action
	private map[uuid.UUID][]game.Action
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{private: map[uuid.UUID][]game.Action{}}
}

func (n *recordingNotifier) PublishActions(_ context.Context, _ string, actions []game.Action) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.public = append(n.public, actions...)
}

func (n *recordingNotifier) NotifyPlayer(_ context.Context, _ string, player uuid.UUID, action game.Action) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.private[player] = append(n.private[player], action)
}

func (n *recordingNotifier) privateFor(player uuid.UUID) []game.Action {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]game.Action(nil), n.private[player]...)
}

func newTestEngine(t *testing.T) (*game.Engine, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	notifier := newRecordingNotifier()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return game.NewEngine(st, notifier, logger), st, notifier
}

// newStartedGame builds an active game with n players (host first, seated in
// join order). The deck is left in NewDeck order via a no-op shuffle; use
// setTable to stage exact cards.
func newStartedGame(t *testing.T, e *game.Engine, n int) (string, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	e.Shuffle = func([]game.Card) {}

	players := make([]uuid.UUID, n)
	for i := range players {
		players[i] = uuid.New()
	}
	g, err := e.CreateGame(ctx, players[0], "player-0")
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		require.NoError(t, e.JoinGame(ctx, g.ID, players[i], "player"))
	}
	require.NoError(t, e.StartGame(ctx, g.ID, players[0]))
	return g.ID, players
}

// setTable overwrites the deck, trash and hands in one transaction.
func setTable(t *testing.T, st *store.MemoryStore, gameID string, deck, trash []game.Card, hands map[uuid.UUID]game.Card) {
	t.Helper()
	_, err := st.Update(context.Background(), gameID, func(tx game.Txn) error {
		tx.SetInternalState(&game.InternalState{Deck: deck, Trash: trash})
		for pid, card := range hands {
			tx.SetHand(pid, card)
		}
		return nil
	})
	require.NoError(t, err)
}

// mutateGame edits the game document directly, bypassing the engine.
func mutateGame(t *testing.T, st *store.MemoryStore, gameID string, fn func(*game.Game)) {
	t.Helper()
	_, err := st.Update(context.Background(), gameID, func(tx game.Txn) error {
		g, err := tx.Game()
		if err != nil {
			return err
		}
		fn(g)
		tx.SetGame(g)
		return nil
	})
	require.NoError(t, err)
}

// snapshot reads the game, internal state and hands in one transaction.
func snapshot(t *testing.T, st *store.MemoryStore, gameID string) (*game.Game, *game.InternalState, map[uuid.UUID]game.Card) {
	t.Helper()
	var g *game.Game
	var state *game.InternalState
	var hands map[uuid.UUID]game.Card
	_, err := st.Update(context.Background(), gameID, func(tx game.Txn) error {
		var err error
		if g, err = tx.Game(); err != nil {
			return err
		}
		if state, err = tx.InternalState(); err != nil {
			return err
		}
		hands, err = tx.Hands()
		return err
	})
	require.NoError(t, err)
	return g, state, hands
}

func TestCreateGame(t *testing.T) {
	e, _, _ := newTestEngine(t)
	host := uuid.New()

	g, err := e.CreateGame(context.Background(), host, "Ana")
	require.NoError(t, err)

	assert.Len(t, g.ID, 4)
	assert.Equal(t, game.StatusGatheringPlayers, g.Status)
	assert.Equal(t, host, g.Host)
	assert.Equal(t, []uuid.UUID{host}, g.Players)
	assert.Equal(t, "Ana", g.Names[host])
}

func TestCreateGameRequiresName(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.CreateGame(context.Background(), uuid.New(), "")
	assert.Equal(t, game.KindInvalidArgument, game.KindOf(err))
}

func TestJoinGame(t *testing.T) {
	e, _, notifier := newTestEngine(t)
	ctx := context.Background()

	g, err := e.CreateGame(ctx, uuid.New(), "host")
	require.NoError(t, err)

	joiner := uuid.New()
	require.NoError(t, e.JoinGame(ctx, g.ID, joiner, "Bo"))

	// Joining twice is a no-op.
	require.NoError(t, e.JoinGame(ctx, g.ID, joiner, "Bo"))

	got, err := e.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)
	assert.Equal(t, "Bo", got.Names[joiner])

	require.Len(t, notifier.public, 1)
	assert.Equal(t, game.ActionPlayerJoined, notifier.public[0].Type)
}

func TestJoinGameNotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	err := e.JoinGame(context.Background(), "0000", uuid.New(), "Bo")
	assert.Equal(t, game.KindNotFound, game.KindOf(err))
}

func TestJoinGameAfterStart(t *testing.T) {
	e, _, _ := newTestEngine(t)
	gameID, _ := newStartedGame(t, e, 2)

	err := e.JoinGame(context.Background(), gameID, uuid.New(), "late")
	assert.Equal(t, game.KindFailedPrecondition, game.KindOf(err))
}

func TestSetPlayerOrder(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	host := uuid.New()
	g, err := e.CreateGame(ctx, host, "host")
	require.NoError(t, err)
	second := uuid.New()
	require.NoError(t, e.JoinGame(ctx, g.ID, second, "second"))

	err = e.SetPlayerOrder(ctx, g.ID, second, []uuid.UUID{second, host})
	assert.Equal(t, game.KindPermissionDenied, game.KindOf(err))

	err = e.SetPlayerOrder(ctx, g.ID, host, []uuid.UUID{host, uuid.New()})
	assert.Equal(t, game.KindInvalidArgument, game.KindOf(err))

	require.NoError(t, e.SetPlayerOrder(ctx, g.ID, host, []uuid.UUID{second, host}))
	got, err := e.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second, host}, got.Players)
}

func TestUpdateGameSettings(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	host := uuid.New()
	g, err := e.CreateGame(ctx, host, "host")
	require.NoError(t, err)
	assert.Equal(t, game.StartingLives, g.InitialLives)
	second := uuid.New()
	require.NoError(t, e.JoinGame(ctx, g.ID, second, "second"))

	err = e.UpdateGameSettings(ctx, g.ID, second, 5)
	assert.Equal(t, game.KindPermissionDenied, game.KindOf(err))

	err = e.UpdateGameSettings(ctx, g.ID, host, 0)
	assert.Equal(t, game.KindInvalidArgument, game.KindOf(err))
	err = e.UpdateGameSettings(ctx, g.ID, host, 6)
	assert.Equal(t, game.KindInvalidArgument, game.KindOf(err))

	require.NoError(t, e.UpdateGameSettings(ctx, g.ID, host, 5))
	require.NoError(t, e.StartGame(ctx, g.ID, host))

	got, err := e.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.InitialLives)
	for _, p := range got.Players {
		assert.Equal(t, 5, got.Lives[p])
	}

	err = e.UpdateGameSettings(ctx, g.ID, host, 1)
	assert.Equal(t, game.KindFailedPrecondition, game.KindOf(err))
}

func TestStartGame(t *testing.T) {
	e, st, notifier := newTestEngine(t)
	gameID, players := newStartedGame(t, e, 3)

	g, state, hands := snapshot(t, st, gameID)
	assert.Equal(t, game.StatusActive, g.Status)
	assert.Equal(t, players[0], g.Dealer)
	assert.Equal(t, players[0], g.ActivePlayer)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, game.RoundPreDeal, g.RoundState)
	for _, p := range players {
		assert.Equal(t, game.StartingLives, g.Lives[p])
		assert.Equal(t, game.NoCard, hands[p])
	}
	assert.Len(t, state.Deck, 52)
	assert.Empty(t, state.Trash)

	require.NotEmpty(t, notifier.public)
	started := notifier.public[len(notifier.public)-1]
	assert.Equal(t, game.ActionGameStarted, started.Type)
	require.NotNil(t, started.GameStarted)
	assert.Equal(t, players[0], started.GameStarted.Dealer)
}

func TestStartGameRequiresHostAndTwoPlayers(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	host := uuid.New()
	g, err := e.CreateGame(ctx, host, "host")
	require.NoError(t, err)

	err = e.StartGame(ctx, g.ID, host)
	assert.Equal(t, game.KindFailedPrecondition, game.KindOf(err))

	other := uuid.New()
	require.NoError(t, e.JoinGame(ctx, g.ID, other, "other"))
	err = e.StartGame(ctx, g.ID, other)
	assert.Equal(t, game.KindPermissionDenied, game.KindOf(err))
}

func TestLeaveGameGathering(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	host := uuid.New()
	g, err := e.CreateGame(ctx, host, "host")
	require.NoError(t, err)
	second := uuid.New()
	require.NoError(t, e.JoinGame(ctx, g.ID, second, "second"))

	// The host leaving promotes the next seat.
	require.NoError(t, e.LeaveGame(ctx, g.ID, host))
	got, err := e.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second}, got.Players)
	assert.Equal(t, second, got.Host)

	// The last player leaving deletes the game.
	require.NoError(t, e.LeaveGame(ctx, g.ID, second))
	_, err = e.GetGame(ctx, g.ID)
	assert.Equal(t, game.KindNotFound, game.KindOf(err))
}

func TestLeaveGameActive(t *testing.T) {
	e, st, _ := newTestEngine(t)
	gameID, players := newStartedGame(t, e, 3)
	a, b, c := players[0], players[1], players[2]

	setTable(t, st, gameID, []game.Card{"2H"}, nil, map[uuid.UUID]game.Card{
		a: "5H", b: "9C", c: "QD",
	})
	mutateGame(t, st, gameID, func(g *game.Game) {
		g.RoundState = game.RoundPlaying
		g.ActivePlayer = b
	})

	// The dealer leaving mid-round is eliminated in place.
	require.NoError(t, e.LeaveGame(context.Background(), gameID, a))

	g, state, hands := snapshot(t, st, gameID)
	assert.Equal(t, game.StatusActive, g.Status)
	assert.Equal(t, 0, g.Lives[a])
	assert.Equal(t, game.NoCard, hands[a])
	assert.Contains(t, state.Trash, game.Card("5H"))
	assert.Equal(t, b, g.Dealer)
	assert.Equal(t, b, g.ActivePlayer)
	assert.True(t, g.HasPlayer(a), "leaver stays in the seat list for history")
}

func TestLeaveGameActiveEndsGame(t *testing.T) {
	e, st, _ := newTestEngine(t)
	gameID, players := newStartedGame(t, e, 2)
	a, b := players[0], players[1]

	mutateGame(t, st, gameID, func(g *game.Game) {
		g.RoundState = game.RoundPlaying
	})
	require.NoError(t, e.LeaveGame(context.Background(), gameID, b))

	g, err := e.GetGame(context.Background(), gameID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusEnded, g.Status)
	assert.Equal(t, []uuid.UUID{a}, g.Winners)
	assert.Equal(t, uuid.Nil, g.Dealer)
	assert.Equal(t, uuid.Nil, g.ActivePlayer)
}

func TestPlayAgain(t *testing.T) {
	e, st, _ := newTestEngine(t)
	gameID, players := newStartedGame(t, e, 3)
	a, b := players[0], players[1]

	mutateGame(t, st, gameID, func(g *game.Game) {
		g.Status = game.StatusEnded
		g.Winners = []uuid.UUID{a}
		g.InitialLives = 5
	})

	ctx := context.Background()
	nextID, err := e.PlayAgain(ctx, gameID, a)
	require.NoError(t, err)
	require.NotEmpty(t, nextID)
	assert.NotEqual(t, gameID, nextID)

	// The ended game links its successor; later callers land in the same one.
	old, err := e.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, nextID, old.NextGameID)

	secondID, err := e.PlayAgain(ctx, gameID, b)
	require.NoError(t, err)
	assert.Equal(t, nextID, secondID)

	next, err := e.GetGame(ctx, nextID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusGatheringPlayers, next.Status)
	assert.Equal(t, a, next.Host)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, next.Players)

	// Settings carry over to the rematch.
	assert.Equal(t, 5, next.InitialLives)
}

func TestPlayAgainRequiresEndedGame(t *testing.T) {
	e, _, _ := newTestEngine(t)
	gameID, players := newStartedGame(t, e, 2)

	_, err := e.PlayAgain(context.Background(), gameID, players[0])
	assert.Equal(t, game.KindFailedPrecondition, game.KindOf(err))
}

func TestActionOrderingAcrossOperations(t *testing.T) {
	e, _, _ := newTestEngine(t)
	gameID, players := newStartedGame(t, e, 3)

	ctx := context.Background()
	require.NoError(t, e.DealCards(ctx, gameID, players[0]))
	require.NoError(t, e.Stick(ctx, gameID, players[1]))
	require.NoError(t, e.Stick(ctx, gameID, players[2]))
	require.NoError(t, e.Stick(ctx, gameID, players[0]))
	require.NoError(t, e.EndRound(ctx, gameID, players[0]))

	actions, err := e.Actions(ctx, gameID)
	require.NoError(t, err)
	require.NotEmpty(t, actions)
	for i := 1; i < len(actions); i++ {
		assert.Greater(t, actions[i].OrderKey, actions[i-1].OrderKey,
			"order keys must be strictly increasing")
	}
}
