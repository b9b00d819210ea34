// Package directory implements the console's operations on users, groups, organizational units and
// computers. Every mutation and the audit entry describing it commit in one transaction.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"adconsole/internal/access"
	"adconsole/internal/apperr"
	"adconsole/internal/audit"
	"adconsole/internal/listing"
	"adconsole/internal/models"
	"adconsole/internal/security"
	"adconsole/internal/session"
)

// Service is the directory's entry point. It holds no per-request state.
type Service struct {
	db       *gorm.DB
	creds    *security.Credentials
	lockout  security.Lockout
	sessions *session.Manager
	sinks    audit.Fanout
	perPage  int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSinks registers post-commit audit consumers.
func WithSinks(sinks ...audit.Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithPerPage sets the default list page size.
func WithPerPage(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// New wires a Service.
func New(db *gorm.DB, creds *security.Credentials, lockout security.Lockout, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		db:       db,
		creds:    creds,
		lockout:  lockout,
		sessions: sessions,
		perPage:  listing.DefaultPerPage,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time { return s.now().UTC() }

// DB exposes the store for read-only collaborators such as the readiness probe.
func (s *Service) DB() *gorm.DB { return s.db }

// mutation runs inside the operation's transaction and describes what it did.
type mutation func(tx *gorm.DB, now time.Time) (audit.Entry, error)

// mutate runs fn and its audit entry atomically, then notifies sinks. The acting principal and client
// address are filled in from p and ctx when fn leaves them empty.
func (s *Service) mutate(ctx context.Context, op string, p *access.Principal, fn mutation) error {
	now := s.Now()
	var row *models.AuditLog
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := fn(tx, now)
		if err != nil {
			return err
		}
		if p != nil && e.ActorID == uuid.Nil {
			e.ActorID = p.UserID
		}
		if e.IP == "" {
			e.IP = access.ClientIP(ctx)
		}
		row, err = audit.Record(tx, e, now)
		return err
	})
	if err != nil {
		err = apperr.Persistence(op, err)
		logFailure(op, err)
		return err
	}
	s.sinks.Notify(ctx, *row)
	return nil
}

func (s *Service) query(q listing.Query) listing.Query { return q.Normalize(s.perPage) }

func logFailure(op string, err error) {
	var pe *apperr.PersistenceError
	if errors.As(err, &pe) {
		log.Error().Err(pe.Err).Str("op", op).Msg("directory operation failed")
	}
}
