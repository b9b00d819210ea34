// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the admin console service.
type Config struct {
	Store

	Addr              string        `env:"ADDR,default=:8080"`
	SessionSigningKey string        `env:"SESSION_SIGNING_KEY,required"`
	SessionTTL        time.Duration `env:"SESSION_TTL,default=12h"`
	RememberDuration  time.Duration `env:"REMEMBER_DURATION,default=168h"`
	CookieDomain      string        `env:"COOKIE_DOMAIN"`
	CookieSecure      bool          `env:"COOKIE_SECURE,default=false"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LoginRateLimit    int           `env:"LOGIN_RATE_LIMIT,default=10"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE,default=true"`
}

// Store is what every command touching the directory needs.
type Store struct {
	DBDSN         string `env:"DB_DSN,required"`
	NATSURL       string `env:"NATS_URL"`
	ArchiveBucket string `env:"ARCHIVE_BUCKET"`

	Policy Policy
}

// Policy groups the account-security knobs.
type Policy struct {
	MinPasswordLength      int           `env:"MIN_PASSWORD_LENGTH,default=8"`
	MaxFailedAttempts      int           `env:"MAX_FAILED_ATTEMPTS,default=3"`
	AccountLockoutDuration time.Duration `env:"ACCOUNT_LOCKOUT_DURATION,default=15m"`
	ItemsPerPage           int           `env:"ITEMS_PER_PAGE,default=20"`
}

// Logging selects log level and output format.
type Logging struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=console"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadStore reads only the store section, for CLI commands that never serve HTTP.
func LoadStore(ctx context.Context) (Store, error) {
	var s Store
	if err := envconfig.Process(ctx, &s); err != nil {
		return Store{}, err
	}
	return s, nil
}

// LoadLogging reads the logging section. It never fails on missing variables.
func LoadLogging(ctx context.Context) (Logging, error) {
	var l Logging
	if err := envconfig.Process(ctx, &l); err != nil {
		return Logging{}, err
	}
	return l, nil
}
