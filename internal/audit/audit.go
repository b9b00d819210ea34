// Package audit writes and reads the append-only audit log.
//
// Record must be called with the same transaction as the mutation it describes so the entry commits
// or rolls back together with it. Sinks run only after commit.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adconsole/internal/listing"
	"adconsole/internal/models"
)

// Entry describes an audit row before it is written.
type Entry struct {
	ActorID  uuid.UUID
	Action   string
	Target   string
	Details  string
	Metadata map[string]any
	IP       string
}

// Record appends e to the audit log using tx.
func Record(tx *gorm.DB, e Entry, now time.Time) (*models.AuditLog, error) {
	if e.ActorID == uuid.Nil {
		return nil, errors.New("audit entry requires an actor")
	}
	if e.Action == "" || e.Target == "" {
		return nil, errors.New("audit entry requires action and target")
	}

	row := &models.AuditLog{
		UserID:    e.ActorID,
		Action:    e.Action,
		Target:    e.Target,
		Timestamp: now.UTC(),
	}
	if e.Details != "" {
		d := e.Details
		row.Details = &d
	}
	if e.IP != "" {
		ip := e.IP
		row.IPAddress = &ip
	}
	if len(e.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(e.Metadata)
	}

	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("record audit %q: %w", e.Action, err)
	}
	return row, nil
}

// Query and Page are the listing types used for audit entries.
type (
	Query = listing.Query
	Page  = listing.Page[models.AuditLog]
)

// List returns a page of entries, newest first. The search term matches action, target or details.
func List(ctx context.Context, db *gorm.DB, q Query) (Page, error) {
	scope := db.Model(&models.AuditLog{}).Order("timestamp DESC").Order("id")
	if q.Search != "" {
		like := q.Like()
		scope = scope.Where(
			`LOWER(action) LIKE ? ESCAPE '\' OR LOWER(target) LIKE ? ESCAPE '\' OR LOWER(COALESCE(details, '')) LIKE ? ESCAPE '\'`,
			like, like, like,
		)
	}
	return listing.Find[models.AuditLog](ctx, scope, q)
}

// Recent returns the n newest entries.
func Recent(ctx context.Context, db *gorm.DB, n int) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := db.WithContext(ctx).Order("timestamp DESC").Order("id").Limit(n).Find(&rows).Error
	return rows, err
}

// ForActor returns every entry attributed to the user, newest first.
func ForActor(ctx context.Context, db *gorm.DB, actor uuid.UUID) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := db.WithContext(ctx).Where("user_id = ?", actor).Order("timestamp DESC").Find(&rows).Error
	return rows, err
}

// Range streams entries with since <= timestamp < until to fn in ascending order, batchSize at a time.
// A zero until means no upper bound.
func Range(ctx context.Context, db *gorm.DB, since, until time.Time, batchSize int, fn func([]models.AuditLog) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	scope := db.WithContext(ctx).Model(&models.AuditLog{}).Where("timestamp >= ?", since.UTC())
	if !until.IsZero() {
		scope = scope.Where("timestamp < ?", until.UTC())
	}
	scope = scope.Order("timestamp").Order("id")
	for offset := 0; ; offset += batchSize {
		var batch []models.AuditLog
		if err := scope.Session(&gorm.Session{}).Limit(batchSize).Offset(offset).Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

// Sink receives entries once their transaction has committed.
type Sink interface {
	Recorded(ctx context.Context, entry models.AuditLog) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, entry models.AuditLog) error

// Recorded calls f.
func (f SinkFunc) Recorded(ctx context.Context, entry models.AuditLog) error { return f(ctx, entry) }

// Fanout delivers committed entries to every sink. Sink failures are logged and never returned; the
// entry is already durable.
type Fanout []Sink

// Notify hands each entry to each sink.
func (f Fanout) Notify(ctx context.Context, entries ...models.AuditLog) {
	for _, e := range entries {
		for _, s := range f {
			if s == nil {
				continue
			}
			if err := s.Recorded(ctx, e); err != nil {
				log.Warn().Err(err).Str("action", e.Action).Str("audit_id", e.ID.String()).Msg("audit sink failed")
			}
		}
	}
}
