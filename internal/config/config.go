// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config holds every tunable of the server and the historian. Values come from the
// process environment (optionally seeded from a .env file by the cmd packages).
type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"localhost:*,127.0.0.1:*"`

	// Round timing.
	RoundDuration  time.Duration `env:"ROUND_DURATION" envDefault:"15s"`
	StartDelay     time.Duration `env:"START_DELAY" envDefault:"3s"`
	CleanupGrace   time.Duration `env:"CLEANUP_GRACE" envDefault:"30s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	FinishedMaxAge time.Duration `env:"FINISHED_MAX_AGE" envDefault:"1h"`

	// Lobby defaults and bounds.
	MinRounds         int `env:"MIN_ROUNDS" envDefault:"1"`
	MaxRounds         int `env:"MAX_ROUNDS" envDefault:"20"`
	DefaultRoundCount int `env:"DEFAULT_ROUND_COUNT" envDefault:"10"`
	DefaultMaxPlayers int `env:"DEFAULT_MAX_PLAYERS" envDefault:"8"`
	CorrectPoints     int `env:"CORRECT_POINTS" envDefault:"10"`

	// Content provider. An empty LLMAPIKey keeps the server on built-in content.
	ContentTimeout time.Duration `env:"CONTENT_TIMEOUT" envDefault:"20s"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"llama-3.3-70b-versatile"`
	LLMMaxAttempts int           `env:"LLM_MAX_ATTEMPTS" envDefault:"2"`

	// Action feed. An empty RedisAddr disables publishing.
	RedisAddr  string `env:"REDIS_ADDR"`
	RedisDB    int    `env:"REDIS_DB" envDefault:"0"`
	EventQueue string `env:"EVENT_QUEUE" envDefault:"partyrounds_actions"`

	// Historian.
	DatabaseURL        string        `env:"DATABASE_URL"`
	HistorianBatchSize int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"50"`
	HistorianPollWait  time.Duration `env:"HISTORIAN_POLL_WAIT" envDefault:"2s"`
	HistorianIdleAfter time.Duration `env:"HISTORIAN_IDLE_AFTER" envDefault:"10m"`
	HistorianIdleSweep time.Duration `env:"HISTORIAN_IDLE_SWEEP" envDefault:"1m"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MinRounds < 1 {
		errs = append(errs, fmt.Errorf("MIN_ROUNDS must be at least 1, got %d", c.MinRounds))
	}
	if c.MaxRounds < c.MinRounds {
		errs = append(errs, fmt.Errorf("MAX_ROUNDS (%d) is below MIN_ROUNDS (%d)", c.MaxRounds, c.MinRounds))
	}
	if c.DefaultRoundCount < c.MinRounds || c.DefaultRoundCount > c.MaxRounds {
		errs = append(errs, fmt.Errorf("DEFAULT_ROUND_COUNT (%d) is outside %d..%d", c.DefaultRoundCount, c.MinRounds, c.MaxRounds))
	}
	if c.DefaultMaxPlayers < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_MAX_PLAYERS must be at least 1, got %d", c.DefaultMaxPlayers))
	}
	for name, d := range map[string]time.Duration{
		"ROUND_DURATION":   c.RoundDuration,
		"CLEANUP_GRACE":    c.CleanupGrace,
		"SWEEP_INTERVAL":   c.SweepInterval,
		"CONTENT_TIMEOUT":  c.ContentTimeout,
		"FINISHED_MAX_AGE": c.FinishedMaxAge,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.StartDelay < 0 {
		errs = append(errs, fmt.Errorf("START_DELAY must not be negative, got %s", c.StartDelay))
	}
	if c.LLMMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", c.LLMMaxAttempts))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger at the configured level. Unknown levels fall
// back to info.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
