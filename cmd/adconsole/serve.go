package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"adconsole/internal/config"
	"adconsole/internal/db"
	"adconsole/internal/handlers"
	"adconsole/internal/metrics"
	"adconsole/internal/reports"
	"adconsole/internal/session"
	"adconsole/internal/version"
	pkgdb "adconsole/pkg/db"
	"adconsole/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownTelemetry, middleware, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: version.Name,
		Version:     version.Version,
		Endpoint:    cfg.OTLPEndpoint,
		Logger:      log.Logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.DBDSN); err != nil {
			return err
		}
	}

	sessions, err := session.NewManager(session.Options{
		SigningKey:       cfg.SessionSigningKey,
		TTL:              cfg.SessionTTL,
		RememberDuration: cfg.RememberDuration,
		CookieDomain:     cfg.CookieDomain,
		CookieSecure:     cfg.CookieSecure,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	dir, err := openDirectory(ctx, cfg.Store, sessions, m)
	if err != nil {
		return err
	}
	defer dir.Close()

	pool, err := pkgdb.Open(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	router, err := handlers.Router(handlers.RouterOptions{
		Service:        dir.svc,
		Sessions:       sessions,
		Reports:        reports.New(pool),
		Metrics:        m.Handler(),
		Ready:          func(ctx context.Context) error { return pkgdb.Ping(ctx, pool) },
		Middleware:     middleware,
		AllowedOrigins: cfg.AllowedOrigins,
		LoginRateLimit: cfg.LoginRateLimit,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting adconsole")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
	return nil
}
