// Package session binds an authenticated user to a client. Each login creates a session row and a
// signed cookie naming it; revoking the row invalidates the cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"adconsole/internal/apperr"
	"adconsole/internal/models"
	"adconsole/internal/version"
)

// CookieName is the name of the session cookie.
const CookieName = "adconsole_session"

const minKeyLength = 16

// Options configures a Manager.
type Options struct {
	SigningKey       string
	TTL              time.Duration
	RememberDuration time.Duration
	CookieDomain     string
	CookieSecure     bool
	Now              func() time.Time
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	key          []byte
	ttl          time.Duration
	remember     time.Duration
	cookieDomain string
	cookieSecure bool
	now          func() time.Time
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager validates o and returns a Manager.
func NewManager(o Options) (*Manager, error) {
	if len(o.SigningKey) < minKeyLength {
		return nil, fmt.Errorf("session signing key must be at least %d bytes", minKeyLength)
	}
	if o.TTL <= 0 {
		o.TTL = 12 * time.Hour
	}
	if o.RememberDuration <= 0 {
		o.RememberDuration = 7 * 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Manager{
		key:          []byte(o.SigningKey),
		ttl:          o.TTL,
		remember:     o.RememberDuration,
		cookieDomain: o.CookieDomain,
		cookieSecure: o.CookieSecure,
		now:          o.Now,
	}, nil
}

// Establish creates a session for u inside tx and returns it with its signed token.
func (m *Manager) Establish(tx *gorm.DB, u *models.User, remember bool, ip string) (*models.Session, string, error) {
	now := m.now().UTC()
	lifetime := m.ttl
	if remember {
		lifetime = m.remember
	}
	s := &models.Session{
		UserID:    u.ID,
		Remember:  remember,
		ExpiresAt: now.Add(lifetime),
	}
	if ip != "" {
		s.IPAddress = &ip
	}
	if err := tx.Create(s).Error; err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	token, err := m.sign(s, now)
	if err != nil {
		return nil, "", err
	}
	return s, token, nil
}

func (m *Manager) sign(s *models.Session, now time.Time) (string, error) {
	c := claims{
		SessionID: s.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    version.Name,
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Parse verifies token and returns the user and session ids it names.
func (m *Manager) Parse(token string) (userID, sessionID uuid.UUID, err error) {
	var c claims
	_, err = jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(version.Name),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %v", apperr.ErrAuthenticationRequired, err)
	}
	if userID, err = uuid.Parse(c.Subject); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad subject", apperr.ErrAuthenticationRequired)
	}
	if sessionID, err = uuid.Parse(c.SessionID); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: bad session id", apperr.ErrAuthenticationRequired)
	}
	return userID, sessionID, nil
}

// Resolve turns a token into its live session and user. Revoked or expired sessions, deleted users
// and deactivated users all yield apperr.ErrAuthenticationRequired; a deactivated user's session is
// revoked on the way out.
func (m *Manager) Resolve(ctx context.Context, db *gorm.DB, token string) (*models.Session, *models.User, error) {
	userID, sessionID, err := m.Parse(token)
	if err != nil {
		return nil, nil, err
	}

	var s models.Session
	err = db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&s).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil, fmt.Errorf("%w: unknown session", apperr.ErrAuthenticationRequired)
	case err != nil:
		return nil, nil, apperr.Persistence("load session", err)
	}
	now := m.now()
	if !s.Active(now) {
		return nil, nil, fmt.Errorf("%w: session ended", apperr.ErrAuthenticationRequired)
	}

	var u models.User
	err = db.WithContext(ctx).First(&u, "id = ?", userID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		revokeStale(ctx, db, s.ID, now)
		return nil, nil, fmt.Errorf("%w: user removed", apperr.ErrAuthenticationRequired)
	case err != nil:
		return nil, nil, apperr.Persistence("load session user", err)
	}
	if !u.IsActive {
		revokeStale(ctx, db, s.ID, now)
		return nil, nil, fmt.Errorf("%w: account deactivated", apperr.ErrAuthenticationRequired)
	}
	return &s, &u, nil
}

// revokeStale ends a session whose user can no longer use it. The caller is refused either way, so a
// failure is only logged.
func revokeStale(ctx context.Context, db *gorm.DB, id uuid.UUID, now time.Time) {
	if err := Revoke(db.WithContext(ctx), id, now); err != nil {
		log.Warn().Err(err).Str("session_id", id.String()).Msg("revoke stale session")
	}
}

// Revoke ends one session.
func Revoke(tx *gorm.DB, id uuid.UUID, now time.Time) error {
	return tx.Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", now.UTC()).Error
}

// RevokeUser ends every open session of a user.
func RevokeUser(tx *gorm.DB, userID uuid.UUID, now time.Time) error {
	return tx.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now.UTC()).Error
}

// Cookie wraps token for s. Sessions without remember-me get a browser-session cookie.
func (m *Manager) Cookie(token string, s *models.Session) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.cookieDomain,
		Secure:   m.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if s.Remember {
		c.Expires = s.ExpiresAt
		c.MaxAge = int(s.ExpiresAt.Sub(m.now()).Seconds())
	}
	return c
}

// ClearCookie expires the session cookie on the client.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookieDomain,
		Secure:   m.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

// TokenFromRequest reads the session token from the cookie, falling back to a bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
