package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.CursorTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.CursorThrottle)
	assert.Equal(t, 10*time.Second, cfg.RoomGracePeriod)
	assert.Equal(t, 10, cfg.MaxOperatorSlots)
	assert.Equal(t, "localhost:8080", cfg.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CURSOR_TIMEOUT", "2s")
	t.Setenv("ROOM_GRACE_PERIOD", "0s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.CursorTimeout)
	assert.Equal(t, time.Duration(0), cfg.RoomGracePeriod)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate_RejectsBadTuning(t *testing.T) {
	cfg := Config{
		JWTSecret:        "x",
		CursorTimeout:    time.Second,
		CleanupInterval:  time.Second,
		MaxOperatorSlots: 0,
		OutboxSize:       1,
	}
	assert.ErrorContains(t, cfg.Validate(), "MAX_OPERATOR_SLOTS")
}
