// Package reports runs read-only aggregate queries over the directory with pgx.
package reports

import (
	"context"
	"fmt"
	"time"

	"adconsole/pkg/db"
)

// DefaultDays is the activity window used when the caller passes none.
const DefaultDays = 7

const (
	usersByRoleSQL = `SELECT role AS key, count(*) AS count
FROM users WHERE deleted_at IS NULL
GROUP BY role ORDER BY role`

	computersByStatusSQL = `SELECT status AS key, count(*) AS count
FROM computers
GROUP BY status ORDER BY status`

	lockedAccountsSQL = `SELECT id, username, failed_attempts, locked_until
FROM users
WHERE deleted_at IS NULL AND locked_until IS NOT NULL AND locked_until > $1
ORDER BY locked_until DESC`

	dailyActivitySQL = `SELECT date_trunc('day', timestamp) AS day, action, count(*) AS count
FROM audit_logs
WHERE timestamp >= $1
GROUP BY day, action
ORDER BY day DESC, count DESC, action`
)

// Count is one bucket of a grouped count.
type Count struct {
	Key   string `db:"key" json:"key"`
	Count int64  `db:"count" json:"count"`
}

// LockedAccount is a user whose lockout has not yet expired.
type LockedAccount struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	FailedAttempts int       `db:"failed_attempts" json:"failed_attempts"`
	LockedUntil    time.Time `db:"locked_until" json:"locked_until"`
}

// DailyCount is the number of audit entries of one action on one day.
type DailyCount struct {
	Day    time.Time `db:"day" json:"day"`
	Action string    `db:"action" json:"action"`
	Count  int64     `db:"count" json:"count"`
}

// Summary is the body of the reports endpoint.
type Summary struct {
	GeneratedAt       time.Time       `json:"generated_at"`
	Days              int             `json:"days"`
	UsersByRole       []Count         `json:"users_by_role"`
	ComputersByStatus []Count         `json:"computers_by_status"`
	LockedAccounts    []LockedAccount `json:"locked_accounts"`
	Activity          []DailyCount    `json:"activity"`
}

// Reporter answers report queries from a pgx pool.
type Reporter struct {
	q db.Querier
}

// New returns a Reporter reading through q.
func New(q db.Querier) *Reporter {
	return &Reporter{q: q}
}

// Summary gathers every report. Locked accounts are evaluated against now; activity covers the last
// days days.
func (r *Reporter) Summary(ctx context.Context, now time.Time, days int) (*Summary, error) {
	if days <= 0 {
		days = DefaultDays
	}
	now = now.UTC()
	out := &Summary{GeneratedAt: now, Days: days}

	if err := db.Select(ctx, r.q, &out.UsersByRole, usersByRoleSQL); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	if err := db.Select(ctx, r.q, &out.ComputersByStatus, computersByStatusSQL); err != nil {
		return nil, fmt.Errorf("computers by status: %w", err)
	}
	if err := db.Select(ctx, r.q, &out.LockedAccounts, lockedAccountsSQL, now); err != nil {
		return nil, fmt.Errorf("locked accounts: %w", err)
	}
	since := now.Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	if err := db.Select(ctx, r.q, &out.Activity, dailyActivitySQL, since); err != nil {
		return nil, fmt.Errorf("daily activity: %w", err)
	}

	out.UsersByRole = nonNil(out.UsersByRole)
	out.ComputersByStatus = nonNil(out.ComputersByStatus)
	out.LockedAccounts = nonNil(out.LockedAccounts)
	out.Activity = nonNil(out.Activity)
	return out, nil
}

// nonNil keeps empty reports serialised as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Ping reports whether the database answers.
func (r *Reporter) Ping(ctx context.Context) error {
	return db.Ping(ctx, r.q)
}
