// internal/historian/historian.go

// Package historian consumes committed game actions from the Redis queue and
// archives them to Postgres, so a game's log outlives the game documents
// themselves. It also cleans up live games that have gone quiet.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modiplay/modi-server/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Schema creates the archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS archived_actions (
	game_id     TEXT   NOT NULL,
	order_key   BIGINT NOT NULL,
	actor       UUID,
	action_type TEXT   NOT NULL,
	action      JSONB  NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (game_id, order_key)
);
`

// Service encapsulates the Redis + DB logic for archiving game actions and
// deleting games that have seen no activity for the configured threshold.
type Service struct {
	rdb        *redis.Client
	pool       *pgxpool.Pool
	log        *logrus.Logger
	queue      string
	batchSize  int
	flushDelay time.Duration
	inactivity time.Duration

	lastActivity sync.Map // map[string]time.Time, keyed by game ID

	batchMu  sync.Mutex
	batch    []cache.ActionRecord
	flush    func()
	ctx      context.Context
	cancelFn context.CancelFunc
}

// New constructs a Service from environment variables or defaults:
//   - HISTORIAN_QUEUE_NAME (default cache.DefaultQueueName)
//   - HISTORIAN_BATCH_SIZE (default 20)
//   - HISTORIAN_FLUSH_MS (default 500)
//   - GAME_INACTIVITY_TIMEOUT_SEC (default 86400, i.e. one day)
func New(rdb *redis.Client, pool *pgxpool.Pool, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 86400)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		rdb:        rdb,
		pool:       pool,
		log:        logger,
		queue:      getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:  batchSize,
		flushDelay: time.Duration(flushMs) * time.Millisecond,
		inactivity: time.Duration(inactivitySec) * time.Second,
		batch:      make([]cache.ActionRecord, 0, batchSize),
		ctx:        ctx,
		cancelFn:   cancel,
	}
	s.flush = s.flushBatch
	return s
}

// Run starts the queue-reading loop and the inactivity sweep, then blocks
// until Stop is called.
func (s *Service) Run() error {
	if _, err := s.pool.Exec(s.ctx, Schema); err != nil {
		return fmt.Errorf("historian schema: %w", err)
	}

	go s.readQueueLoop()
	go s.flushLoop()
	go s.inactivityLoop()

	s.log.Info("modi-historian service started")
	<-s.ctx.Done()
	s.log.Info("modi-historian shutting down")
	return nil
}

// Stop gracefully stops the service.
func (s *Service) Stop() {
	s.cancelFn()
}

// readQueueLoop continuously uses BLPop to retrieve action records from the
// Redis queue, batching them for the periodic flush. The pop timeout matches
// the flush delay so an idle queue never holds a partial batch longer than
// one flush interval.
func (s *Service) readQueueLoop() {
	for s.ctx.Err() == nil {
		res, err := s.rdb.BLPop(s.ctx, s.flushDelay, s.queue).Result()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				s.log.WithError(err).Error("BLPop")
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var rec cache.ActionRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			s.log.WithError(err).Warn("invalid action record")
			continue
		}

		s.lastActivity.Store(rec.GameID, time.Now())
		s.appendToBatch(rec)
	}
}

// flushLoop flushes any partial batch every flushDelay.
func (s *Service) flushLoop() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// appendToBatch adds a record and flushes once the threshold is reached.
func (s *Service) appendToBatch(rec cache.ActionRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.batch = append(s.batch, rec)
	if len(s.batch) >= s.batchSize {
		s.flushBatchLocked()
	}
}

func (s *Service) flushBatch() {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushBatchLocked()
}

// flushBatchLocked writes the current batch in a single transaction. Callers
// hold batchMu.
func (s *Service) flushBatchLocked() {
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]cache.ActionRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			q := `
				INSERT INTO archived_actions (game_id, order_key, actor, action_type, action)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (game_id, order_key) DO NOTHING
			`
			if _, err := tx.Exec(ctx, q, rec.GameID, rec.OrderKey, rec.Actor, rec.Type, rec.Action); err != nil {
				return fmt.Errorf("insert archived action: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("flush batch")
	} else {
		s.log.WithField("count", len(batchCopy)).Debug("archived actions")
	}
}

// inactivityLoop periodically deletes live games that have been inactive
// beyond the threshold. The archived log is retained.
func (s *Service) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			s.lastActivity.Range(func(key, val interface{}) bool {
				gameID, ok1 := key.(string)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > s.inactivity {
					s.deleteStaleGame(gameID)
					s.lastActivity.Delete(gameID)
				}
				return true
			})
		}
	}
}

// deleteStaleGame removes the live documents for a quiet game; the cascade
// takes internal state, hands and the live action log with it.
func (s *Service) deleteStaleGame(gameID string) {
	ctx := context.Background()
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID); err != nil {
		s.log.WithError(err).WithField("game_id", gameID).Error("delete stale game")
		return
	}
	s.log.WithField("game_id", gameID).Info("deleted stale game")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer from an environment variable or returns a default.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
