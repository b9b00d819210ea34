package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"adconsole/internal/audit"
	"adconsole/internal/config"
	"adconsole/internal/db"
	"adconsole/internal/directory"
	"adconsole/internal/security"
	"adconsole/internal/session"
	"adconsole/internal/version"
	"adconsole/pkg/bus"
)

// directoryHandle bundles an open store with the service built on it.
type directoryHandle struct {
	db  *gorm.DB
	svc *directory.Service
	bus *bus.Bus
}

func (h *directoryHandle) Close() {
	if h.bus != nil {
		h.bus.Close()
	}
	if err := db.Close(h.db); err != nil {
		log.Error().Err(err).Msg("close database")
	}
}

// openDirectory connects to the store and wires the service. sessions may be nil for commands that
// never log anyone in.
func openDirectory(ctx context.Context, store config.Store, sessions *session.Manager, sinks ...audit.Sink) (*directoryHandle, error) {
	database, err := db.Connect(ctx, store.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	h := &directoryHandle{db: database}

	if store.NATSURL != "" {
		b, err := connectBus(ctx, store.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("audit events will not be published")
		} else {
			h.bus = b
			sinks = append(sinks, audit.PublishSink(b))
		}
	}

	h.svc = directory.New(database,
		security.NewCredentials(security.PasswordPolicy{MinLength: store.Policy.MinPasswordLength}),
		security.NewLockout(store.Policy.MaxFailedAttempts, store.Policy.AccountLockoutDuration),
		sessions,
		directory.WithPerPage(store.Policy.ItemsPerPage),
		directory.WithSinks(sinks...),
	)
	return h, nil
}

func connectBus(ctx context.Context, url string) (*bus.Bus, error) {
	b, err := bus.New(url, nats.Name(version.Name))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if err := b.EnsureStream(ctx, audit.StreamName, audit.Subject); err != nil {
		b.Close()
		return nil, fmt.Errorf("ensure audit stream: %w", err)
	}
	return b, nil
}
