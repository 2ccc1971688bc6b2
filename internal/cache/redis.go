// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/modiplay/modi-server/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list (queue) name for committed game actions.
var DefaultQueueName = "modi_actions"

// ActionRecord is the envelope pushed to the historian queue.
type ActionRecord struct {
	GameID    string          `json:"game_id"`
	OrderKey  int64           `json:"order_key"`
	Actor     uuid.UUID       `json:"actor"`
	Type      game.ActionType `json:"type"`
	Action    json.RawMessage `json:"action"`
	Timestamp int64           `json:"timestamp"`
}

// Connect initializes a Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect(ctx context.Context) (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Notifier fans committed actions out through Redis: public actions go to
// the historian queue and a per-game pub/sub channel, private actions to a
// per-player channel. Everything here is post-commit and best-effort; errors
// are logged and dropped.
type Notifier struct {
	rdb   *redis.Client
	log   *logrus.Logger
	queue string
}

// NewNotifier builds a Notifier. The historian queue name comes from
// HISTORIAN_QUEUE_NAME, defaulting to DefaultQueueName.
func NewNotifier(rdb *redis.Client, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Notifier{
		rdb:   rdb,
		log:   logger,
		queue: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
	}
}

// GameChannel is the pub/sub channel carrying a game's public actions.
func GameChannel(gameID string) string {
	return "modi:game:" + gameID
}

// PlayerChannel is the pub/sub channel for one player's private actions.
func PlayerChannel(gameID string, player uuid.UUID) string {
	return "modi:game:" + gameID + ":player:" + player.String()
}

// PublishActions implements game.Notifier.
func (n *Notifier) PublishActions(ctx context.Context, gameID string, actions []game.Action) {
	for _, a := range actions {
		raw, err := json.Marshal(a)
		if err != nil {
			n.log.WithError(err).Warn("marshal action")
			continue
		}
		rec := ActionRecord{
			GameID:    gameID,
			OrderKey:  a.OrderKey,
			Actor:     a.Player,
			Type:      a.Type,
			Action:    raw,
			Timestamp: time.Now().UnixMilli(),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			n.log.WithError(err).Warn("marshal action record")
			continue
		}
		if err := n.rdb.RPush(ctx, n.queue, data).Err(); err != nil {
			n.log.WithError(err).WithField("game_id", gameID).Warn("push action to historian queue")
		}
		if err := n.rdb.Publish(ctx, GameChannel(gameID), raw).Err(); err != nil {
			n.log.WithError(err).WithField("game_id", gameID).Warn("publish action")
		}
	}
}

// NotifyPlayer implements game.Notifier.
func (n *Notifier) NotifyPlayer(ctx context.Context, gameID string, player uuid.UUID, action game.Action) {
	raw, err := json.Marshal(action)
	if err != nil {
		n.log.WithError(err).Warn("marshal private action")
		return
	}
	if err := n.rdb.Publish(ctx, PlayerChannel(gameID, player), raw).Err(); err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"game_id": gameID,
			"player":  player,
		}).Warn("publish private action")
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
