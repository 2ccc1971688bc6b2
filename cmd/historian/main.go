// cmd/historian/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/modiplay/modi-server/internal/cache"
	"github.com/modiplay/modi-server/internal/database"
	"github.com/modiplay/modi-server/internal/historian"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	ctx := context.Background()

	pool, err := database.Connect(ctx)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(rdb, pool, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("signal received, stopping historian")
		svc.Stop()
	}()

	if err := svc.Run(); err != nil {
		log.Fatalf("historian exited: %v", err)
	}
}
