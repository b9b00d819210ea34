package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"adconsole/internal/access"
	"adconsole/internal/audit"
	"adconsole/internal/db/dbtest"
	"adconsole/internal/models"
	"adconsole/internal/security"
	"adconsole/internal/session"
)

const adminPassword = "Admin123"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock
	admin *access.Principal
	ctx   context.Context

	mu   sync.Mutex
	sunk []models.AuditLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := dbtest.New(t)
	f := &fixture{
		db:    database,
		clock: &clock{t: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)},
		ctx:   access.WithClientIP(context.Background(), "198.51.100.7"),
	}
	sessions, err := session.NewManager(session.Options{
		SigningKey: "test-signing-key-0123456789abcdef",
		Now:        f.clock.Now,
	})
	require.NoError(t, err)

	f.svc = New(database,
		security.NewCredentials(security.PasswordPolicy{MinLength: 8}, security.WithCost(bcrypt.MinCost)),
		security.NewLockout(3, 15*time.Minute),
		sessions,
		WithClock(f.clock.Now),
		WithPerPage(5),
		WithSinks(audit.SinkFunc(func(_ context.Context, e models.AuditLog) error {
			f.mu.Lock()
			f.sunk = append(f.sunk, e)
			f.mu.Unlock()
			return nil
		})),
	)

	admin, created, err := f.svc.BootstrapAdmin(f.ctx, "admin@company.com", adminPassword)
	require.NoError(t, err)
	require.True(t, created)
	f.admin = access.FromUser(admin, uuid.New())
	return f
}

// principal returns a bound principal for username.
func (f *fixture) principal(t *testing.T, username string) *access.Principal {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.Where("username = ?", username).First(&u).Error)
	return access.FromUser(&u, uuid.New())
}

func (f *fixture) user(t *testing.T, username string) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.Where("username = ?", username).First(&u).Error)
	return u
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(&models.AuditLog{})
	if action != "" {
		q = q.Where("action = ?", action)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u, err := f.svc.CreateUser(f.ctx, f.admin, UserInput{
		Username:  username,
		Email:     username + "@company.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		IsActive:  true,
		Password:  "User123!",
	})
	require.NoError(t, err)
	return u
}
