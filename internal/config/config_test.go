package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	assert.True(t, cfg.AutoMigrateUp)
	assert.False(t, cfg.AutoMigrateDown)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.StatsTTL)
	assert.Empty(t, cfg.RedisConfig.Addr)
	assert.Empty(t, cfg.TopicARN)
	assert.Equal(t, int64(10<<20), cfg.MaxFileSize)
	assert.Equal(t, 5.0, cfg.AuthRPS)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9000")
	t.Setenv("POSTGRES_CONN", "postgres://u:p@localhost:5432/db")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("AUTH_RATE_LIMIT_BURST", "3")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
	assert.Equal(t, "postgres://u:p@localhost:5432/db", cfg.Conn)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisConfig.Addr)
	assert.Equal(t, 3, cfg.AuthBurst)

	t.Setenv("JWT_TTL", "soon")
	_, err = NewConfig()
	assert.Error(t, err)
}

func TestNewConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SNS_TOPIC_ARN=arn:aws:sns:us-east-1:1:events\nLOG_LEVEL=WARN\n"), 0o600))
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Cleanup(func() { os.Unsetenv("SNS_TOPIC_ARN") })

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:sns:us-east-1:1:events", cfg.TopicARN)
	// the process environment wins over the file
	assert.Equal(t, "ERROR", cfg.LogLevel)
}
