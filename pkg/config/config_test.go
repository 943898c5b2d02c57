package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	c := Load()

	assert.True(t, c.Streams.Enabled)
	assert.Equal(t, 15*time.Second, c.Streams.FreshnessWindow)
	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, []string{"image/jpeg", "image/png", "application/pdf"}, c.Storage.AllowedTypes)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REPLAY_FRESHNESS_WINDOW", "30s")
	t.Setenv("ENABLE_RESUMABLE_STREAMS", "false")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("RATE_LIMIT", "2.5")

	c := Load()

	assert.Equal(t, 30*time.Second, c.Streams.FreshnessWindow)
	assert.False(t, c.Streams.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.Security.AllowedOrigins)
	assert.Equal(t, 2.5, c.Security.RateLimit)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("REPLAY_FRESHNESS_WINDOW", "soon")
	t.Setenv("DB_MAX_CONNS", "many")

	c := Load()

	assert.Equal(t, 15*time.Second, c.Streams.FreshnessWindow)
	assert.Equal(t, 20, c.Database.MaxConns)
}
