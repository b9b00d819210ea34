package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"adconsole/internal/db/dbtest"
	"adconsole/internal/listing"
	"adconsole/internal/models"
)

func newActor(t *testing.T, database *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "x",
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, database.Create(u).Error)
	return u
}

func TestRecord(t *testing.T) {
	database := dbtest.New(t)
	actor := newActor(t, database)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	row, err := Record(database, Entry{
		ActorID:  actor.ID,
		Action:   ActionUserCreated,
		Target:   "User: jdoe",
		Details:  "Created user jdoe",
		Metadata: map[string]any{"role": "User"},
		IP:       "192.0.2.10",
	}, now)
	require.NoError(t, err)

	var stored models.AuditLog
	require.NoError(t, database.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, actor.ID, stored.UserID)
	assert.Equal(t, ActionUserCreated, stored.Action)
	assert.Equal(t, "User: jdoe", stored.Target)
	require.NotNil(t, stored.Details)
	assert.Equal(t, "Created user jdoe", *stored.Details)
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "192.0.2.10", *stored.IPAddress)
	assert.Equal(t, "User", stored.Metadata["role"])
	assert.True(t, now.Equal(stored.Timestamp))
}

func TestRecordRequiresActorAndAction(t *testing.T) {
	database := dbtest.New(t)
	actor := newActor(t, database)

	_, err := Record(database, Entry{Action: ActionLogin, Target: "User: x"}, time.Now())
	assert.Error(t, err)
	_, err = Record(database, Entry{ActorID: actor.ID, Target: "User: x"}, time.Now())
	assert.Error(t, err)
}

func TestEntriesAreImmutable(t *testing.T) {
	database := dbtest.New(t)
	actor := newActor(t, database)
	row, err := Record(database, Entry{ActorID: actor.ID, Action: ActionLogin, Target: actor.Label()}, time.Now())
	require.NoError(t, err)

	err = database.Model(row).Update("action", "tampered").Error
	assert.ErrorIs(t, err, models.ErrAuditImmutable)

	err = database.Delete(row).Error
	assert.ErrorIs(t, err, models.ErrAuditImmutable)

	var stored models.AuditLog
	require.NoError(t, database.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, ActionLogin, stored.Action)
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	database := dbtest.New(t)
	actor := newActor(t, database)
	boom := errors.New("boom")

	err := database.Transaction(func(tx *gorm.DB) error {
		if _, err := Record(tx, Entry{ActorID: actor.ID, Action: ActionGroupCreated, Target: "Group: x"}, time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, database.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestListNewestFirstWithSearch(t *testing.T) {
	database := dbtest.New(t)
	actor := newActor(t, database)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := Record(database, Entry{
			ActorID: actor.ID,
			Action:  ActionComputerCreated,
			Target:  fmt.Sprintf("Computer: WS-%02d", i),
		}, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := Record(database, Entry{ActorID: actor.ID, Action: ActionLogin, Target: actor.Label()}, base.Add(time.Hour))
	require.NoError(t, err)

	ctx := context.Background()
	page, err := List(ctx, database, listing.Query{Page: 1, PerPage: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 6, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 4)
	assert.Equal(t, ActionLogin, page.Items[0].Action)
	assert.Equal(t, "Computer: WS-04", page.Items[1].Target)

	page, err = List(ctx, database, listing.Query{Search: "ws-0", Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)

	recent, err := Recent(ctx, database, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ActionLogin, recent[0].Action)
}

func TestRangeBatches(t *testing.T) {
	database := dbtest.New(t)
	actor := newActor(t, database)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		_, err := Record(database, Entry{ActorID: actor.ID, Action: ActionLogin, Target: actor.Label()}, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	var sizes []int
	var seen []time.Time
	err := Range(context.Background(), database, base.Add(time.Hour), base.Add(6*time.Hour), 2, func(batch []models.AuditLog) error {
		sizes = append(sizes, len(batch))
		for _, e := range batch {
			seen = append(seen, e.Timestamp)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	require.Len(t, seen, 5)
	assert.True(t, seen[0].Equal(base.Add(time.Hour)))
	assert.True(t, seen[4].Equal(base.Add(5*time.Hour)))
}

func TestFanoutSwallowsSinkErrors(t *testing.T) {
	var got []string
	f := Fanout{
		SinkFunc(func(context.Context, models.AuditLog) error { return errors.New("down") }),
		nil,
		SinkFunc(func(_ context.Context, e models.AuditLog) error {
			got = append(got, e.Action)
			return nil
		}),
	}
	f.Notify(context.Background(), models.AuditLog{Action: ActionLogin}, models.AuditLog{Action: ActionLogout})
	assert.Equal(t, []string{ActionLogin, ActionLogout}, got)
}

func TestComputerStatusAction(t *testing.T) {
	assert.Equal(t, "Computer ON", ComputerStatusAction(string(models.StatusOn)))
	assert.Equal(t, "Computer RESTART", ComputerStatusAction(string(models.StatusRestart)))
}
