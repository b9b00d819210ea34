package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/audit"
)

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Dashboard(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, err := a.svc.AuditLogs(r.Context(), access.FromContext(r.Context()), audit.Query(listQuery(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if err := access.RequireAdmin(access.FromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	if a.reports == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("reports are not configured"))
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 90 {
			writeError(w, apperr.Invalid("days", "must be between 1 and 90"))
			return
		}
		days = n
	}

	summary, err := a.reports.Summary(r.Context(), a.svc.Now(), days)
	if err != nil {
		log.Error().Err(err).Msg("reports summary")
		writeError(w, apperr.Persistence("reports summary", err))
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
