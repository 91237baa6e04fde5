package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is t.Chdir from Go 1.24, reimplemented for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Worker.BatchSize)
	assert.Equal(t, 45, cfg.Worker.BudgetSecs)
	assert.Equal(t, 10, cfg.Validator.TimeoutSecs)
	assert.Equal(t, int64(5000), cfg.Validator.SlowLoadMs)
	assert.Equal(t, 5, cfg.Email.MaxPages)
	assert.Equal(t, 2, cfg.Email.MaxDepth)
	assert.True(t, cfg.Email.RespectRobots)
	assert.Equal(t, "LeadScoutBot", cfg.Email.BotName)
	assert.Equal(t, 10, cfg.Social.TimeoutSecs)
	assert.Contains(t, cfg.Fetch.UserAgent, "LeadScoutBot")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LEADSCOUT_STORE_DRIVER", "sqlite")
	t.Setenv("LEADSCOUT_WORKER_BATCH_SIZE", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Worker.BatchSize)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shout", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
