package reports

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role AS key")).
		WillReturnRows(pgxmock.NewRows([]string{"key", "count"}).AddRow("Admin", int64(2)).AddRow("User", int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status AS key")).
		WillReturnRows(pgxmock.NewRows([]string{"key", "count"}).AddRow("OFF", int64(2)).AddRow("ON", int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users\nWHERE deleted_at IS NULL AND locked_until")).
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "failed_attempts", "locked_until"}).
			AddRow("4f1c", "jdoe", 3, until))
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
		WithArgs(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"day", "action", "count"}).
			AddRow(day, "Failed Login Attempt", int64(3)).
			AddRow(day, "User Login", int64(1)))

	got, err := New(mock).Summary(context.Background(), now, 7)
	require.NoError(t, err)

	assert.Equal(t, []Count{{Key: "Admin", Count: 2}, {Key: "User", Count: 4}}, got.UsersByRole)
	assert.Equal(t, []Count{{Key: "OFF", Count: 2}, {Key: "ON", Count: 4}}, got.ComputersByStatus)
	require.Len(t, got.LockedAccounts, 1)
	assert.Equal(t, "jdoe", got.LockedAccounts[0].Username)
	assert.Equal(t, 3, got.LockedAccounts[0].FailedAttempts)
	assert.Equal(t, until, got.LockedAccounts[0].LockedUntil)
	require.Len(t, got.Activity, 2)
	assert.Equal(t, "Failed Login Attempt", got.Activity[0].Action)
	assert.Equal(t, 7, got.Days)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryEmptyResultsAreNotNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT role").WillReturnRows(pgxmock.NewRows([]string{"key", "count"}))
	mock.ExpectQuery("SELECT status").WillReturnRows(pgxmock.NewRows([]string{"key", "count"}))
	mock.ExpectQuery("locked_until >").WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "failed_attempts", "locked_until"}))
	mock.ExpectQuery("audit_logs").WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"day", "action", "count"}))

	got, err := New(mock).Summary(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultDays, got.Days)
	assert.NotNil(t, got.UsersByRole)
	assert.NotNil(t, got.LockedAccounts)
	assert.Empty(t, got.Activity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT role").WillReturnError(errors.New("relation \"users\" does not exist"))

	_, err = New(mock).Summary(context.Background(), time.Now(), 1)
	assert.ErrorContains(t, err, "users by role")
}
