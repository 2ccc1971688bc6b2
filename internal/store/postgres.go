// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modiplay/modi-server/internal/game"
)

// Schema creates the tables the Postgres gateway needs. Documents are stored
// as JSONB; the hands and actions tables are kept relational so the log can
// be queried by order key.
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS game_internal_states (
	game_id TEXT PRIMARY KEY REFERENCES games(id) ON DELETE CASCADE,
	doc     JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS player_hands (
	game_id   TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	player_id UUID NOT NULL,
	card      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (game_id, player_id)
);
CREATE TABLE IF NOT EXISTS game_actions (
	game_id   TEXT   NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	order_key BIGINT NOT NULL,
	doc       JSONB  NOT NULL,
	PRIMARY KEY (game_id, order_key)
);
`

// PostgresStore is the production Storage Gateway. Every Update runs inside
// one database transaction with the game row locked, so concurrent updates
// of the same game serialize at the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) CreateGame(ctx context.Context, g *game.Game) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO games (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, g.ID, doc)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrExists
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, gameID string, fn func(tx game.Txn) error) ([]game.Action, error) {
	var committed []game.Action
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		pt := &pgTxn{ctx: ctx, tx: tx, gameID: gameID, hands: map[uuid.UUID]game.Card{}}

		// Lock the game row for the duration of the transaction.
		current, err := pt.lockGame()
		if err != nil {
			return err
		}
		if err := fn(pt); err != nil {
			return err
		}

		g := pt.game
		if g == nil {
			g = current
		}
		for i := range pt.appended {
			pt.appended[i].OrderKey = g.ActionCount
			g.ActionCount++
		}

		doc, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal game: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE games SET doc = $2 WHERE id = $1`, gameID, doc); err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		if pt.state != nil {
			sdoc, err := json.Marshal(pt.state)
			if err != nil {
				return fmt.Errorf("marshal internal state: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO game_internal_states (game_id, doc) VALUES ($1, $2)
				ON CONFLICT (game_id) DO UPDATE SET doc = EXCLUDED.doc`, gameID, sdoc)
			if err != nil {
				return fmt.Errorf("upsert internal state: %w", err)
			}
		}
		for pid, card := range pt.hands {
			_, err = tx.Exec(ctx, `
				INSERT INTO player_hands (game_id, player_id, card) VALUES ($1, $2, $3)
				ON CONFLICT (game_id, player_id) DO UPDATE SET card = EXCLUDED.card`,
				gameID, pid, string(card))
			if err != nil {
				return fmt.Errorf("upsert hand: %w", err)
			}
		}
		for _, a := range pt.appended {
			adoc, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("marshal action: %w", err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO game_actions (game_id, order_key, doc) VALUES ($1, $2, $3)`,
				gameID, a.OrderKey, adoc)
			if err != nil {
				return fmt.Errorf("insert action: %w", err)
			}
		}
		committed = pt.appended
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *PostgresStore) GetGame(ctx context.Context, gameID string) (*game.Game, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM games WHERE id = $1`, gameID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.Errorf(game.KindNotFound, "game %s not found", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	var g game.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("unmarshal game: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) Actions(ctx context.Context, gameID string) ([]game.Action, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM game_actions WHERE game_id = $1 ORDER BY order_key`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select actions: %w", err)
	}
	defer rows.Close()

	var actions []game.Action
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var a game.Action
		if err := json.Unmarshal(doc, &a); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *PostgresStore) DeleteGame(ctx context.Context, gameID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	return err
}

// pgTxn reads documents inside the wrapping database transaction and stages
// writes in memory until commit.
type pgTxn struct {
	ctx    context.Context
	tx     pgx.Tx
	gameID string

	cached *game.Game

	game     *game.Game
	state    *game.InternalState
	hands    map[uuid.UUID]game.Card
	appended []game.Action
}

func (pt *pgTxn) lockGame() (*game.Game, error) {
	var doc []byte
	err := pt.tx.QueryRow(pt.ctx,
		`SELECT doc FROM games WHERE id = $1 FOR UPDATE`, pt.gameID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.Errorf(game.KindNotFound, "game %s not found", pt.gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock game: %w", err)
	}
	var g game.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("unmarshal game: %w", err)
	}
	pt.cached = &g
	return &g, nil
}

func (pt *pgTxn) Game() (*game.Game, error) {
	if pt.cached == nil {
		if _, err := pt.lockGame(); err != nil {
			return nil, err
		}
	}
	return copyGame(pt.cached), nil
}

func (pt *pgTxn) InternalState() (*game.InternalState, error) {
	var doc []byte
	err := pt.tx.QueryRow(pt.ctx,
		`SELECT doc FROM game_internal_states WHERE game_id = $1`, pt.gameID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.Errorf(game.KindNotFound, "game internal state not found")
	}
	if err != nil {
		return nil, fmt.Errorf("select internal state: %w", err)
	}
	var s game.InternalState
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("unmarshal internal state: %w", err)
	}
	return &s, nil
}

func (pt *pgTxn) Hands() (map[uuid.UUID]game.Card, error) {
	rows, err := pt.tx.Query(pt.ctx,
		`SELECT player_id, card FROM player_hands WHERE game_id = $1`, pt.gameID)
	if err != nil {
		return nil, fmt.Errorf("select hands: %w", err)
	}
	defer rows.Close()

	hands := map[uuid.UUID]game.Card{}
	for rows.Next() {
		var pid uuid.UUID
		var card string
		if err := rows.Scan(&pid, &card); err != nil {
			return nil, err
		}
		hands[pid] = game.Card(card)
	}
	return hands, rows.Err()
}

func (pt *pgTxn) SetGame(g *game.Game) { pt.game = g }

func (pt *pgTxn) SetInternalState(s *game.InternalState) { pt.state = s }

func (pt *pgTxn) SetHand(pid uuid.UUID, card game.Card) { pt.hands[pid] = card }

func (pt *pgTxn) Append(actions ...game.Action) { pt.appended = append(pt.appended, actions...) }
