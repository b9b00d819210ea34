package handlers

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/session"
)

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address. The result is
// advisory and only recorded on audit rows; rate limits key on the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := access.WithClientIP(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSession resolves the session cookie or bearer token into a principal. Requests without a valid
// session continue anonymously; the operations decide whether that is enough.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		s, u, err := a.sessions.Resolve(r.Context(), a.svc.DB(), token)
		switch {
		case err == nil:
			ctx := access.WithPrincipal(r.Context(), access.FromUser(u, s.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		case errors.Is(err, apperr.ErrAuthenticationRequired):
			http.SetCookie(w, a.sessions.ClearCookie())
		default:
			log.Error().Err(err).Msg("resolve session")
		}
		next.ServeHTTP(w, r)
	})
}

func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := access.RequireAuthenticated(access.FromContext(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
