package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/audit"
	"adconsole/internal/models"
	"adconsole/internal/security"
	"adconsole/internal/session"
)

// AdminUsername is the account created by the bootstrap routine.
const AdminUsername = "admin"

// LoginResult is a successful login.
type LoginResult struct {
	User    *models.User
	Session *models.Session
	Token   string
}

// Login checks credentials and establishes a session. The lock is consulted before the password so a
// locked account never has its password evaluated. Every attempt against an existing account writes
// exactly one audit entry, failures included; unknown usernames write none.
func (s *Service) Login(ctx context.Context, username, password string, remember bool) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Invalid("", "username and password are required")
	}

	now := s.Now()
	ip := access.ClientIP(ctx)
	var (
		result  *LoginResult
		outcome error
		row     *models.AuditLog
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		err := forUpdate(tx).Where("username = ?", username).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.creds.CheckPassword(nil, password)
			outcome = apperr.ErrInvalidCredentials
			return nil
		}
		if err != nil {
			return err
		}

		entry := audit.Entry{ActorID: u.ID, Target: u.Label(), IP: ip}
		dirty, lockErr := s.lockout.Admit(&u, now)
		switch {
		case lockErr != nil:
			entry.Action = audit.ActionLoginLocked
			entry.Details = "Login refused while account is locked" + fromIP(ip)
			outcome = lockErr
		case !u.IsActive:
			entry.Action = audit.ActionLoginDisabled
			entry.Details = "Login refused for deactivated account" + fromIP(ip)
			outcome = apperr.ErrAccountDisabled
		case !s.creds.CheckPassword(&u, password):
			dirty = true
			entry.Action = audit.ActionLoginFailed
			entry.Details = "Failed login" + fromIP(ip)
			if s.lockout.RecordFailure(&u, now) {
				entry.Details += "; account locked until " + u.LockedUntil.Format(time.RFC3339)
				entry.Metadata = map[string]any{"locked_until": u.LockedUntil.Format(time.RFC3339)}
			} else {
				entry.Metadata = map[string]any{"failed_attempts": u.FailedAttempts}
			}
			outcome = apperr.ErrInvalidCredentials
		default:
			dirty = true
			s.lockout.RecordSuccess(&u)
			u.LastLogin = &now
			sess, token, err := s.sessions.Establish(tx, &u, remember, ip)
			if err != nil {
				return err
			}
			entry.Action = audit.ActionLogin
			entry.Details = "Successful login" + fromIP(ip)
			result = &LoginResult{User: &u, Session: sess, Token: token}
		}

		if dirty {
			if err := tx.Model(&u).Select("failed_attempts", "locked_until", "last_login").Updates(&u).Error; err != nil {
				return err
			}
		}
		row, err = audit.Record(tx, entry, now)
		return err
	})
	if err != nil {
		err = apperr.Persistence("login", err)
		logFailure("login", err)
		return nil, err
	}
	if row != nil {
		s.sinks.Notify(ctx, *row)
	}

	if outcome != nil {
		log.Warn().Str("username", username).Str("ip", ip).Str("reason", outcome.Error()).Msg("login refused")
		return nil, outcome
	}
	log.Info().Str("username", username).Str("ip", ip).Msg("login succeeded")
	return result, nil
}

func fromIP(ip string) string {
	if ip == "" {
		return ""
	}
	return " from IP: " + ip
}

// Logout revokes the principal's current session.
func (s *Service) Logout(ctx context.Context, p *access.Principal) error {
	if err := access.RequireAuthenticated(p); err != nil {
		return err
	}
	return s.mutate(ctx, "logout", p, func(tx *gorm.DB, now time.Time) (audit.Entry, error) {
		if err := session.Revoke(tx, p.SessionID, now); err != nil {
			return audit.Entry{}, err
		}
		ip := access.ClientIP(ctx)
		return audit.Entry{
			Action:  audit.ActionLogout,
			Target:  "User: " + p.Username,
			Details: "User logged out" + fromIP(ip),
		}, nil
	})
}

// ChangeOwnPassword lets any authenticated principal replace its password after proving the current one.
func (s *Service) ChangeOwnPassword(ctx context.Context, p *access.Principal, current, next string) error {
	if err := access.RequireAuthenticated(p); err != nil {
		return err
	}
	return s.mutate(ctx, "change password", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		u, err := s.loadUser(tx, p.UserID)
		if err != nil {
			return audit.Entry{}, err
		}
		if !s.creds.CheckPassword(u, current) {
			return audit.Entry{}, apperr.Invalid("current_password", "current password is incorrect")
		}
		if err := s.setPassword(tx, u, next); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:  audit.ActionPasswordChanged,
			Target:  u.Label(),
			Details: "User changed own password",
		}, nil
	})
}

// ResetPassword sets another user's password. It clears any lock on the account.
func (s *Service) ResetPassword(ctx context.Context, p *access.Principal, userID uuid.UUID, next string) error {
	if err := access.RequireAdmin(p); err != nil {
		return err
	}
	return s.mutate(ctx, "reset password", p, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		u, err := s.loadUser(tx, userID)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := s.setPassword(tx, u, next); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Action:  audit.ActionPasswordReset,
			Target:  u.Label(),
			Details: "Admin reset password for user",
		}, nil
	})
}

// ResetAdminPassword is the operator recovery path for the bootstrap account. It runs without a
// principal; the entry is attributed to the admin account itself.
func (s *Service) ResetAdminPassword(ctx context.Context, next, origin string) error {
	return s.mutate(ctx, "reset admin password", nil, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		var u models.User
		if err := forUpdate(tx).Where("username = ?", AdminUsername).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return audit.Entry{}, fmt.Errorf("admin user: %w", apperr.ErrNotFound)
			}
			return audit.Entry{}, err
		}
		if err := s.setPassword(tx, &u, next); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			ActorID: u.ID,
			Action:  audit.ActionAdminPasswordReset,
			Target:  u.Label(),
			Details: "Admin password reset from " + origin,
		}, nil
	})
}

// BootstrapAdmin creates the admin account when it does not exist. It reports whether it created one.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) (*models.User, bool, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("username = ?", AdminUsername).First(&existing).Error
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, apperr.Persistence("bootstrap admin", err)
	}

	u := &models.User{
		Username:  AdminUsername,
		Email:     email,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      models.RoleAdmin,
		IsActive:  true,
	}
	if err := validEmail(u.Email); err != nil {
		return nil, false, err
	}
	err = s.mutate(ctx, "bootstrap admin", nil, func(tx *gorm.DB, _ time.Time) (audit.Entry, error) {
		if err := s.creds.SetPassword(u, password); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.Create(u).Error; err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			ActorID: u.ID,
			Action:  audit.ActionUserCreated,
			Target:  u.Label(),
			Details: "Bootstrap administrator created",
		}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// setPassword validates and stores a new password and forces the lockout machine to Unlocked(0).
func (s *Service) setPassword(tx *gorm.DB, u *models.User, plain string) error {
	if err := s.creds.SetPassword(u, plain); err != nil {
		return err
	}
	security.Unlock(u)
	return tx.Model(u).Select("password_hash", "failed_attempts", "locked_until", "updated_at").Updates(u).Error
}

// loadUser reads and row-locks a user for the rest of tx.
func (s *Service) loadUser(tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := forUpdate(tx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// forUpdate serializes read-modify-write of a user row, so concurrent failed logins each see the
// counter left by the previous one. SQLite ignores the clause and serializes whole transactions.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
