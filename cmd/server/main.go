// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/partyrounds/internal/cache"
	"github.com/jason-s-yu/partyrounds/internal/config"
	"github.com/jason-s-yu/partyrounds/internal/content"
	"github.com/jason-s-yu/partyrounds/internal/game"
	"github.com/jason-s-yu/partyrounds/internal/handlers"
	"github.com/jason-s-yu/partyrounds/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := handlers.NewHub(logger)
	engine := game.NewEngine(store.New(), contentProvider(cfg, logger), hub, settingsFrom(cfg), logger)

	if cfg.RedisAddr != "" {
		feed, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.EventQueue)
		if err != nil {
			logger.WithError(err).Warn("action feed disabled")
		} else {
			defer feed.Close()
			engine.Actions = feed
			logger.WithField("queue", cfg.EventQueue).Info("publishing session actions to redis")
		}
	}

	srv := handlers.NewServer(engine, hub, cfg.AllowedOrigins)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewMux(logger, srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		engine.RunSweeper(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		srv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

// contentProvider returns the LLM provider when a key is configured and built-in
// content otherwise.
func contentProvider(cfg config.Config, logger *logrus.Logger) content.Provider {
	p, err := content.NewLLMProvider(content.LLMConfig{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		MaxAttempts: cfg.LLMMaxAttempts,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("LLM provider unavailable, serving built-in content")
		return content.Offline{}
	}
	logger.WithField("model", cfg.LLMModel).Info("using LLM content provider")
	return p
}

func settingsFrom(cfg config.Config) game.Settings {
	return game.Settings{
		RoundDuration:     cfg.RoundDuration,
		StartDelay:        cfg.StartDelay,
		CleanupGrace:      cfg.CleanupGrace,
		ContentTimeout:    cfg.ContentTimeout,
		FinishedMaxAge:    cfg.FinishedMaxAge,
		MinRounds:         cfg.MinRounds,
		MaxRounds:         cfg.MaxRounds,
		DefaultRoundCount: cfg.DefaultRoundCount,
		DefaultMaxPlayers: cfg.DefaultMaxPlayers,
		CorrectPoints:     cfg.CorrectPoints,
	}
}
