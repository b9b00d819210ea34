// Package metrics exposes the console's Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adconsole/internal/audit"
	"adconsole/internal/models"
)

// Metrics holds the registry and the collectors registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	AuditEntries  *prometheus.CounterVec
	LoginAttempts *prometheus.CounterVec
}

// New builds a registry with the Go and process collectors plus the console's own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		AuditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adconsole",
			Name:      "audit_entries_total",
			Help:      "Audit entries committed, by action.",
		}, []string{"action"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adconsole",
			Name:      "login_attempts_total",
			Help:      "Login attempts against existing accounts, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuditEntries,
		m.LoginAttempts,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Recorded counts a committed audit entry. Login outcomes are derived from the entry's action.
func (m *Metrics) Recorded(_ context.Context, e models.AuditLog) error {
	m.AuditEntries.WithLabelValues(e.Action).Inc()
	if outcome := loginOutcome(e.Action); outcome != "" {
		m.LoginAttempts.WithLabelValues(outcome).Inc()
	}
	return nil
}

func loginOutcome(action string) string {
	switch action {
	case audit.ActionLogin:
		return "success"
	case audit.ActionLoginFailed:
		return "bad_credentials"
	case audit.ActionLoginLocked:
		return "locked"
	case audit.ActionLoginDisabled:
		return "disabled"
	default:
		return ""
	}
}

var _ audit.Sink = (*Metrics)(nil)
