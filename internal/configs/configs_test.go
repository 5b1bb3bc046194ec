package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "s2.chatango.com", cfg.PMHost)
	assert.Equal(t, 443, cfg.Port)
	assert.Equal(t, "http://chatango.com/login", cfg.LoginURL)
	assert.Equal(t, 60*time.Second, cfg.KeepaliveInterval)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.False(t, cfg.DebugFrames)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PM_HOST", "s9.example.com")
	t.Setenv("CHAT_PORT", "8080")
	t.Setenv("KEEPALIVE_INTERVAL", "90s")
	t.Setenv("DEBUG_FRAMES", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "s9.example.com", cfg.PMHost)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.KeepaliveInterval)
	assert.True(t, cfg.DebugFrames)
}

func TestLoadConfigHistoryFloor(t *testing.T) {
	t.Setenv("HISTORY_CAPACITY", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.HistoryCapacity)
}

func TestLoadConfigInvalidPort(t *testing.T) {
	t.Setenv("CHAT_PORT", "99999")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigKeepaliveFloor(t *testing.T) {
	t.Setenv("KEEPALIVE_INTERVAL", "100ms")

	_, err := LoadConfig()
	assert.Error(t, err)
}
