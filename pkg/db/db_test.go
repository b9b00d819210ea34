package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT name FROM groups").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Domain Admins").AddRow("HR Staff"))

	var names []string
	require.NoError(t, Select(context.Background(), mock, &names, "SELECT name FROM groups ORDER BY name"))
	assert.Equal(t, []string{"Domain Admins", "HR Staff"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT count").WithArgs("ON").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	var n int64
	require.NoError(t, Get(context.Background(), mock, &n, "SELECT count(*) FROM computers WHERE status = $1", "ON"))
	assert.EqualValues(t, 4, n)
}

func TestPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.EqualError(t, Ping(context.Background(), mock), "down")

	assert.Error(t, Ping(context.Background(), nil))
}
