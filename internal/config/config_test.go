package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.RoundDuration)
	assert.Equal(t, 3*time.Second, cfg.StartDelay)
	assert.Equal(t, 30*time.Second, cfg.CleanupGrace)
	assert.Equal(t, 10, cfg.DefaultRoundCount)
	assert.Equal(t, 8, cfg.DefaultMaxPlayers)
	assert.Equal(t, 10, cfg.CorrectPoints)
	assert.Equal(t, 2, cfg.LLMMaxAttempts)
	assert.Equal(t, []string{"localhost:*", "127.0.0.1:*"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROUND_DURATION", "10s")
	t.Setenv("MAX_ROUNDS", "5")
	t.Setenv("DEFAULT_ROUND_COUNT", "3")
	t.Setenv("ALLOWED_ORIGINS", "example.com,*.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.RoundDuration)
	assert.Equal(t, 5, cfg.MaxRounds)
	assert.Equal(t, 3, cfg.DefaultRoundCount)
	assert.Equal(t, []string{"example.com", "*.example.com"}, cfg.AllowedOrigins)
}

func TestValidateRejectsBadBounds(t *testing.T) {
	t.Setenv("MIN_ROUNDS", "5")
	t.Setenv("MAX_ROUNDS", "2")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_ROUNDS")
}

func TestValidateRejectsNonPositiveDuration(t *testing.T) {
	t.Setenv("ROUND_DURATION", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROUND_DURATION")
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := Config{LogLevel: "chatty"}.NewLogger()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger = Config{LogLevel: "debug"}.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}
