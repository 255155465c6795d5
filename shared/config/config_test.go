package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMatchmakerServiceConfigDefaults(t *testing.T) {
	t.Setenv("POD_IP", "10.1.2.3")
	t.Setenv("REDIS_ADDRS", "a:6379, b:6379")

	cfg, err := LoadMatchmakerServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"a:6379", "b:6379"}, cfg.RedisAddrs)
	assert.Equal(t, "10.1.2.3", cfg.ServiceIP)
	assert.Equal(t, 8083, cfg.ServicePort)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.StallTimeout)
	assert.Equal(t, 30*time.Minute, cfg.ModerationInterval)
	assert.Equal(t, 16, cfg.TickConcurrency)
	assert.Equal(t, 3, cfg.MaxSearchAttempts)
	assert.Equal(t, 200.0, cfg.RatingBracket)
	assert.Equal(t, 1000.0, cfg.DefaultRating)
	assert.Equal(t, "redis", cfg.ChatBackend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMatchmakerServiceConfigOverrides(t *testing.T) {
	t.Setenv("MATCHMAKER_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("MATCHMAKER_STALL_TIMEOUT", "0s")
	t.Setenv("MATCHMAKER_RATING_BRACKET", "150.5")
	t.Setenv("MATCHMAKER_CHAT_BACKEND", "memory")

	cfg, err := LoadMatchmakerServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.ServicePort)
	assert.Zero(t, cfg.StallTimeout)
	assert.Equal(t, 150.5, cfg.RatingBracket)
	assert.Equal(t, "memory", cfg.ChatBackend)
}

func TestLoadMatchmakerServiceConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"MATCHMAKER_TICK_INTERVAL", "soon"},
		{"MATCHMAKER_TICK_INTERVAL", "0s"},
		{"MATCHMAKER_TICK_CONCURRENCY", "0"},
		{"MATCHMAKER_MAX_SEARCH_ATTEMPTS", "many"},
		{"MATCHMAKER_RATING_BRACKET", "wide"},
		{"MATCHMAKER_CHAT_BACKEND", "kafka"},
		{"MATCHMAKER_LISTEN_ADDR", "nowhere"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := LoadMatchmakerServiceConfig()
			assert.Error(t, err)
		})
	}
}
