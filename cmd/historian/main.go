// cmd/historian/main.go is an asynchronous historian service that pops session actions
// from a Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/partyrounds/internal/cache"
	"github.com/jason-s-yu/partyrounds/internal/config"
	"github.com/jason-s-yu/partyrounds/internal/database"
	"github.com/jason-s-yu/partyrounds/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		logger.Fatal("REDIS_ADDR and DATABASE_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.EventQueue)
	if err != nil {
		logger.Fatal(err)
	}
	defer feed.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()

	archive := database.NewArchive(pool)
	if err := archive.EnsureSchema(ctx); err != nil {
		logger.Fatal(err)
	}

	svc := historian.NewService(feed, archive, historian.Config{
		BatchSize: cfg.HistorianBatchSize,
		PollWait:  cfg.HistorianPollWait,
		IdleAfter: cfg.HistorianIdleAfter,
		IdleSweep: cfg.HistorianIdleSweep,
	}, logger)

	if err := svc.Run(ctx); err != nil {
		logger.Errorf("historian exited: %v", err)
	}
	logger.Info("Historian shutdown complete.")
}
