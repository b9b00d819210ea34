// Package handlers exposes the directory over a JSON HTTP API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"adconsole/internal/directory"
	"adconsole/internal/reports"
	"adconsole/internal/session"
)

// ReportSource produces the reports summary.
type ReportSource interface {
	Summary(ctx context.Context, now time.Time, days int) (*reports.Summary, error)
}

// RouterOptions wires the router's collaborators.
type RouterOptions struct {
	Service        *directory.Service
	Sessions       *session.Manager
	Reports        ReportSource
	Metrics        http.Handler
	Ready          func(context.Context) error
	Middleware     func(http.Handler) http.Handler
	AllowedOrigins []string
	RateLimit      int
	LoginRateLimit int
}

// API holds the handler dependencies.
type API struct {
	svc      *directory.Service
	sessions *session.Manager
	reports  ReportSource
	ready    func(context.Context) error
}

// Router builds the HTTP router.
func Router(opts RouterOptions) (http.Handler, error) {
	if opts.Service == nil {
		return nil, errors.New("directory service is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 300
	}
	if opts.LoginRateLimit <= 0 {
		opts.LoginRateLimit = 10
	}
	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	a := &API{svc: opts.Service, sessions: opts.Sessions, reports: opts.Reports, ready: opts.Ready}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withClientIP)
	if opts.Middleware != nil {
		r.Use(opts.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(opts.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP), httprate.WithLimitHandler(tooManyRequests)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(a.withSession)

		r.With(httprate.Limit(opts.LoginRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP), httprate.WithLimitHandler(tooManyRequests))).
			Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(requirePrincipal)

			r.Post("/auth/logout", a.handleLogout)
			r.Get("/me", a.handleMe)
			r.Put("/me/password", a.handleChangePassword)
			r.Get("/dashboard", a.handleDashboard)
			r.Get("/audit-logs", a.handleAuditLogs)
			r.Get("/reports/summary", a.handleReportSummary)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", a.handleListUsers)
				r.Post("/", a.handleCreateUser)
				r.Get("/{id}", a.handleGetUser)
				r.Put("/{id}", a.handleUpdateUser)
				r.Delete("/{id}", a.handleDeleteUser)
				r.Put("/{id}/password", a.handleResetPassword)
			})
			r.Route("/groups", func(r chi.Router) {
				r.Get("/", a.handleListGroups)
				r.Post("/", a.handleCreateGroup)
				r.Get("/{id}", a.handleGetGroup)
				r.Put("/{id}", a.handleUpdateGroup)
				r.Delete("/{id}", a.handleDeleteGroup)
				r.Put("/{id}/members/{userID}", a.handleAddMember)
				r.Delete("/{id}/members/{userID}", a.handleRemoveMember)
			})
			r.Route("/ous", func(r chi.Router) {
				r.Get("/", a.handleListOUs)
				r.Post("/", a.handleCreateOU)
				r.Get("/{id}", a.handleGetOU)
				r.Put("/{id}", a.handleUpdateOU)
				r.Delete("/{id}", a.handleDeleteOU)
			})
			r.Route("/computers", func(r chi.Router) {
				r.Get("/", a.handleListComputers)
				r.Post("/", a.handleCreateComputer)
				r.Get("/{id}", a.handleGetComputer)
				r.Put("/{id}", a.handleUpdateComputer)
				r.Delete("/{id}", a.handleDeleteComputer)
				r.Post("/{id}/status/{status}", a.handleChangeStatus)
			})
		})
	})

	return r, nil
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.ready(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, errors.New("database unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusTooManyRequests, errors.New("too many requests, slow down"))
}
