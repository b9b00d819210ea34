package directory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adconsole/internal/apperr"
	"adconsole/internal/audit"
	"adconsole/internal/models"
)

func TestEndToEndLockout(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateUser(f.ctx, f.admin, UserInput{
		Username: "jdoe", Email: "john.doe@company.com", FirstName: "John", LastName: "Doe",
		Role: models.RoleUser, IsActive: true, Password: "User123!",
	})
	require.NoError(t, err)
	// One for the bootstrap admin, one for jdoe.
	assert.EqualValues(t, 2, f.auditCount(t, audit.ActionUserCreated))

	users := f.count(t, &models.User{})
	entries := f.auditCount(t, "")
	_, err = f.svc.CreateUser(f.ctx, f.admin, UserInput{
		Username: "jdoe", Email: "someone.else@company.com", FirstName: "J", LastName: "D",
		Role: models.RoleUser, IsActive: true, Password: "User123!",
	})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "username", ve.Field)
	assert.Equal(t, users, f.count(t, &models.User{}))
	assert.Equal(t, entries, f.auditCount(t, ""))

	for i := 1; i <= 3; i++ {
		_, err := f.svc.Login(f.ctx, "jdoe", "wrong-password", false)
		require.ErrorIs(t, err, apperr.ErrInvalidCredentials, "attempt %d", i)
	}
	jdoe := f.user(t, "jdoe")
	require.NotNil(t, jdoe.LockedUntil)
	assert.True(t, f.clock.Now().Add(15*time.Minute).Equal(*jdoe.LockedUntil))
	assert.Zero(t, jdoe.FailedAttempts)
	assert.EqualValues(t, 3, f.auditCount(t, audit.ActionLoginFailed))

	f.clock.Advance(time.Minute)
	_, err = f.svc.Login(f.ctx, "jdoe", "User123!", false)
	var locked *apperr.AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.True(t, jdoe.LockedUntil.Equal(locked.Until))
	assert.EqualValues(t, 1, f.auditCount(t, audit.ActionLoginLocked))
	assert.EqualValues(t, 0, f.auditCount(t, audit.ActionLogin))
}

func TestLockExpiresLazily(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "jdoe", models.RoleUser)
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(f.ctx, "jdoe", "nope", false)
	}

	f.clock.Advance(15 * time.Minute)
	res, err := f.svc.Login(f.ctx, "jdoe", "User123!", true)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.Session.Remember)

	jdoe := f.user(t, "jdoe")
	assert.Nil(t, jdoe.LockedUntil)
	assert.Zero(t, jdoe.FailedAttempts)
	require.NotNil(t, jdoe.LastLogin)
	assert.True(t, f.clock.Now().Equal(*jdoe.LastLogin))
}

func TestSuccessfulLoginClearsCounter(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "jdoe", models.RoleUser)

	_, err := f.svc.Login(f.ctx, "jdoe", "nope", false)
	require.Error(t, err)
	assert.Equal(t, 1, f.user(t, "jdoe").FailedAttempts)

	_, err = f.svc.Login(f.ctx, "jdoe", "User123!", false)
	require.NoError(t, err)
	assert.Zero(t, f.user(t, "jdoe").FailedAttempts)

	var row models.AuditLog
	require.NoError(t, f.db.Where("action = ?", audit.ActionLogin).First(&row).Error)
	assert.Equal(t, f.user(t, "jdoe").ID, row.UserID)
	assert.Equal(t, "User: jdoe", row.Target)
	require.NotNil(t, row.IPAddress)
	assert.Equal(t, "198.51.100.7", *row.IPAddress)
}

func TestConcurrentFailedLoginsAllCount(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "jdoe", models.RoleUser)

	const attempts = 6
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Login(f.ctx, "jdoe", "WrongPass1", false)
		}(i)
	}
	wg.Wait()

	var invalid, locked int
	for i, err := range errs {
		var le *apperr.AccountLockedError
		switch {
		case errors.Is(err, apperr.ErrInvalidCredentials):
			invalid++
		case errors.As(err, &le):
			locked++
		default:
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	assert.Equal(t, 3, invalid)
	assert.Equal(t, 3, locked)
	assert.EqualValues(t, 3, f.auditCount(t, audit.ActionLoginFailed))
	assert.EqualValues(t, 3, f.auditCount(t, audit.ActionLoginLocked))

	jdoe := f.user(t, "jdoe")
	require.NotNil(t, jdoe.LockedUntil)
	assert.True(t, f.clock.Now().Add(15*time.Minute).Equal(*jdoe.LockedUntil))
	assert.Zero(t, jdoe.FailedAttempts)
}

func TestEveryLoginAttemptAuditsOnce(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "jdoe", models.RoleUser)
	before := f.auditCount(t, "")

	_, _ = f.svc.Login(f.ctx, "jdoe", "User123!", false)
	_, _ = f.svc.Login(f.ctx, "jdoe", "bad", false)
	_, _ = f.svc.Login(f.ctx, "jdoe", "bad", false)
	_, _ = f.svc.Login(f.ctx, "jdoe", "bad", false)
	_, _ = f.svc.Login(f.ctx, "jdoe", "User123!", false)

	assert.Equal(t, before+5, f.auditCount(t, ""))
}

func TestUnknownUserLogin(t *testing.T) {
	f := newFixture(t)
	before := f.auditCount(t, "")

	_, err := f.svc.Login(f.ctx, "ghost", "User123!", false)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Equal(t, before, f.auditCount(t, ""))
}

func TestLoginRequiresBothFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(f.ctx, "  ", "x", false)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDisabledAccountLogin(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "dlee", models.RoleUser)
	_, err := f.svc.UpdateUser(f.ctx, f.admin, u.ID, UserInput{
		Username: "dlee", Email: "dlee@company.com", FirstName: "David", LastName: "Lee",
		Role: models.RoleUser, IsActive: false,
	})
	require.NoError(t, err)

	_, err = f.svc.Login(f.ctx, "dlee", "User123!", false)
	assert.ErrorIs(t, err, apperr.ErrAccountDisabled)
	assert.EqualValues(t, 1, f.auditCount(t, audit.ActionLoginDisabled))
	assert.Zero(t, f.user(t, "dlee").FailedAttempts)
}

func TestAdminResetUnlocks(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "jdoe", models.RoleUser)
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(f.ctx, "jdoe", "nope", false)
	}
	require.NotNil(t, f.user(t, "jdoe").LockedUntil)

	require.NoError(t, f.svc.ResetPassword(f.ctx, f.admin, u.ID, "Fresh123"))
	jdoe := f.user(t, "jdoe")
	assert.Nil(t, jdoe.LockedUntil)
	assert.Zero(t, jdoe.FailedAttempts)
	assert.EqualValues(t, 1, f.auditCount(t, audit.ActionPasswordReset))

	_, err := f.svc.Login(f.ctx, "jdoe", "Fresh123", false)
	require.NoError(t, err)
}

func TestResetRejectsWeakPassword(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "jdoe", models.RoleUser)
	hash := f.user(t, "jdoe").PasswordHash
	before := f.auditCount(t, "")

	err := f.svc.ResetPassword(f.ctx, f.admin, u.ID, "weak")
	var wp *apperr.WeakPasswordError
	require.ErrorAs(t, err, &wp)
	assert.Equal(t, hash, f.user(t, "jdoe").PasswordHash)
	assert.Equal(t, before, f.auditCount(t, ""))
}

func TestChangeOwnPassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "jdoe", models.RoleUser)
	p := f.principal(t, "jdoe")

	err := f.svc.ChangeOwnPassword(f.ctx, p, "not-current", "Another123")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "current_password", ve.Field)

	// A stale lock is cleared by a self-service change too.
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", p.UserID).
		Updates(map[string]any{"failed_attempts": 2}).Error)
	require.NoError(t, f.svc.ChangeOwnPassword(f.ctx, p, "User123!", "Another123"))
	assert.Zero(t, f.user(t, "jdoe").FailedAttempts)
	assert.EqualValues(t, 1, f.auditCount(t, audit.ActionPasswordChanged))

	_, err = f.svc.Login(f.ctx, "jdoe", "Another123", false)
	require.NoError(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "jdoe", models.RoleUser)
	res, err := f.svc.Login(f.ctx, "jdoe", "User123!", false)
	require.NoError(t, err)

	p := f.principal(t, "jdoe")
	p.SessionID = res.Session.ID
	require.NoError(t, f.svc.Logout(f.ctx, p))

	var s models.Session
	require.NoError(t, f.db.First(&s, "id = ?", res.Session.ID).Error)
	assert.NotNil(t, s.RevokedAt)
	assert.EqualValues(t, 1, f.auditCount(t, audit.ActionLogout))
}

func TestResetAdminPassword(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(f.ctx, AdminUsername, "nope", false)
	}
	require.NoError(t, f.svc.ResetAdminPassword(f.ctx, "Recovered9", "command line"))

	_, err := f.svc.Login(f.ctx, AdminUsername, "Recovered9", false)
	require.NoError(t, err)

	var row models.AuditLog
	require.NoError(t, f.db.Where("action = ?", audit.ActionAdminPasswordReset).First(&row).Error)
	assert.Equal(t, f.admin.UserID, row.UserID)
}

func TestBootstrapAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u, created, err := f.svc.BootstrapAdmin(f.ctx, "admin@company.com", adminPassword)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.admin.UserID, u.ID)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestSinksSeeOnlyCommittedEntries(t *testing.T) {
	f := newFixture(t)
	f.sunk = nil

	_, err := f.svc.CreateGroup(f.ctx, f.admin, GroupInput{Name: "x"})
	require.Error(t, err)
	assert.Empty(t, f.sunk)

	_, err = f.svc.CreateGroup(f.ctx, f.admin, GroupInput{Name: "Helpdesk"})
	require.NoError(t, err)
	require.Len(t, f.sunk, 1)
	assert.Equal(t, audit.ActionGroupCreated, f.sunk[0].Action)
}
