package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://adconsole@localhost/adconsole")
	t.Setenv("SESSION_SIGNING_KEY", "0123456789abcdef0123")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres://adconsole@localhost/adconsole", cfg.DBDSN)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RememberDuration)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, Policy{
		MinPasswordLength:      8,
		MaxFailedAttempts:      3,
		AccountLockoutDuration: 15 * time.Minute,
		ItemsPerPage:           20,
	}, cfg.Policy)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://x")
	t.Setenv("SESSION_SIGNING_KEY", "0123456789abcdef0123")
	t.Setenv("MAX_FAILED_ATTEMPTS", "5")
	t.Setenv("ACCOUNT_LOCKOUT_DURATION", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Policy.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Policy.AccountLockoutDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestRequiredSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		load func(context.Context) error
	}{
		{
			name: "server needs a signing key",
			env:  map[string]string{"DB_DSN": "postgres://x"},
			load: func(ctx context.Context) error { _, err := Load(ctx); return err },
		},
		{
			name: "store needs a dsn",
			env:  map[string]string{},
			load: func(ctx context.Context) error { _, err := LoadStore(ctx); return err },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DB_DSN", "SESSION_SIGNING_KEY"} {
				t.Setenv(k, "")
				require.NoError(t, os.Unsetenv(k))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Error(t, tt.load(context.Background()))
		})
	}
}

func TestLoadStoreWithoutSessionKey(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://x")
	t.Setenv("SESSION_SIGNING_KEY", "")

	s, err := LoadStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", s.DBDSN)
	assert.Equal(t, 20, s.Policy.ItemsPerPage)

	l, err := LoadLogging(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "info", l.Level)
}
