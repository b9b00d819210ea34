package security

import (
	"time"

	"adconsole/internal/apperr"
	"adconsole/internal/models"
)

const (
	// DefaultMaxAttempts is the number of consecutive failures that locks an account.
	DefaultMaxAttempts = 3
	// DefaultLockoutDuration is how long a lock lasts.
	DefaultLockoutDuration = 15 * time.Minute
)

// Lockout is the per-user failed-login state machine. State lives on the user row:
// Unlocked(n) is LockedUntil == nil (or in the past) with FailedAttempts == n, Locked(t) is
// LockedUntil == t in the future. Expiry is evaluated lazily, nothing sweeps locks.
type Lockout struct {
	MaxAttempts int
	Duration    time.Duration
}

// NewLockout applies defaults to non-positive values.
func NewLockout(maxAttempts int, duration time.Duration) Lockout {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return Lockout{MaxAttempts: maxAttempts, Duration: duration}
}

// Locked reports whether u is inside a lockout window at now.
func (l Lockout) Locked(u *models.User, now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Admit runs before any credential check. It returns *apperr.AccountLockedError while the lock is
// open. An expired lock is cleared, putting u back to Unlocked(0); the returned bool reports
// whether u was modified and needs saving.
func (l Lockout) Admit(u *models.User, now time.Time) (bool, error) {
	if u.LockedUntil == nil {
		return false, nil
	}
	if now.Before(*u.LockedUntil) {
		return false, &apperr.AccountLockedError{Until: *u.LockedUntil}
	}
	u.LockedUntil = nil
	u.FailedAttempts = 0
	return true, nil
}

// RecordFailure counts a failed credential check and locks u once the threshold is reached.
// It reports whether this failure locked the account.
func (l Lockout) RecordFailure(u *models.User, now time.Time) bool {
	u.FailedAttempts++
	if u.FailedAttempts < l.maxAttempts() {
		return false
	}
	until := now.UTC().Add(l.duration())
	u.LockedUntil = &until
	u.FailedAttempts = 0
	return true
}

// RecordSuccess clears the failure counter after a successful credential check.
func (l Lockout) RecordSuccess(u *models.User) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
}

// Unlock forces Unlocked(0). Every password reset goes through here.
func Unlock(u *models.User) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
}

func (l Lockout) maxAttempts() int {
	if l.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return l.MaxAttempts
}

func (l Lockout) duration() time.Duration {
	if l.Duration <= 0 {
		return DefaultLockoutDuration
	}
	return l.Duration
}
