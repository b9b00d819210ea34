package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adconsole/internal/config"
)

func TestParseRange(t *testing.T) {
	from, to, err := parseRange("2026-03-01", "2026-03-02T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), to)

	_, to, err = parseRange("2026-03-01", "")
	require.NoError(t, err)
	assert.True(t, to.IsZero())

	_, _, err = parseRange("2026-03-02", "2026-03-01")
	assert.Error(t, err)
	_, _, err = parseRange("yesterday", "")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging(config.Logging{Level: "debug", Format: "json"}))
	assert.NoError(t, setupLogging(config.Logging{Level: "INFO", Format: "console"}))
	assert.Error(t, setupLogging(config.Logging{Level: "loud", Format: "json"}))
	assert.Error(t, setupLogging(config.Logging{Level: "info", Format: "xml"}))
}

func TestAdminPassword(t *testing.T) {
	t.Setenv(envAdminPassword, "FromEnv123")

	pw, err := adminPassword("FromFlag123")
	require.NoError(t, err)
	assert.Equal(t, "FromFlag123", pw)

	pw, err = adminPassword("")
	require.NoError(t, err)
	assert.Equal(t, "FromEnv123", pw)

	t.Setenv(envAdminPassword, "")
	_, err = adminPassword("")
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"serve"}, {"migrate"}, {"create-admin"}, {"reset-admin-password"}, {"seed-demo"},
		{"audit", "archive", "build"}, {"audit", "archive", "verify"}, {"audit", "tail"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
