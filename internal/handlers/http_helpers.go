package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"adconsole/internal/apperr"
	"adconsole/internal/listing"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return apperr.Invalid("", "request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperr.Invalid("", "malformed request body: %v", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		weak    *apperr.WeakPasswordError
		invalid *apperr.ValidationError
		locked  *apperr.AccountLockedError
		pe      *apperr.PersistenceError
	)
	switch {
	case errors.As(err, &weak):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   weak.Error(),
			"field":   "password",
			"reasons": weak.Reasons,
		})
	case errors.As(err, &invalid):
		body := map[string]any{"error": invalid.Message}
		if invalid.Field != "" {
			body["field"] = invalid.Field
		}
		respondJSON(w, http.StatusUnprocessableEntity, body)
	case errors.As(err, &locked):
		respondJSON(w, http.StatusLocked, map[string]any{
			"error":        locked.Error(),
			"locked_until": locked.Until.UTC(),
		})
	case errors.Is(err, apperr.ErrAuthenticationRequired), errors.Is(err, apperr.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err)
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrAccountDisabled):
		respondError(w, http.StatusForbidden, err)
	case errors.Is(err, apperr.ErrSelfDeletion):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, http.StatusNotFound, apperr.ErrNotFound)
	case errors.As(err, &pe):
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
	default:
		log.Error().Err(err).Msg("unhandled error")
		respondError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Invalid(name, "must be a UUID")
	}
	return id, nil
}

func listQuery(r *http.Request) listing.Query {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return listing.Query{Search: q.Get("search"), Page: page, PerPage: perPage}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
