// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/modiplay/modi-server/internal/auth"
	"github.com/modiplay/modi-server/internal/cache"
	"github.com/modiplay/modi-server/internal/database"
	"github.com/modiplay/modi-server/internal/game"
	"github.com/modiplay/modi-server/internal/handlers"
	"github.com/modiplay/modi-server/internal/middleware"
	"github.com/modiplay/modi-server/internal/store"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	pool, err := database.Connect(ctx)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to migrate game schema: %v", err)
	}

	users := database.NewUsers(pool)
	if err := users.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate users schema: %v", err)
	}

	rdb, err := cache.Connect(ctx)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	engine := game.NewEngine(store.NewPostgresStore(pool), cache.NewNotifier(rdb, logger), logger)
	srv := handlers.NewServer(engine, users, rdb, logger)

	mux := http.NewServeMux()
	srv.Routes(mux)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
