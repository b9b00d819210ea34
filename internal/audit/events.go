package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"adconsole/internal/models"
)

const (
	// StreamName is the JetStream stream carrying audit events.
	StreamName = "ADCONSOLE_AUDIT"
	// Subject is where committed entries are published.
	Subject = "adconsole.audit.recorded"
)

// Publisher is the event bus surface the audit log needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// PublishSink forwards committed entries to Subject.
func PublishSink(p Publisher) Sink {
	return SinkFunc(func(ctx context.Context, entry models.AuditLog) error {
		return p.Publish(ctx, Subject, entry)
	})
}

// DecodeEvent parses a message published by PublishSink.
func DecodeEvent(data []byte) (models.AuditLog, error) {
	var entry models.AuditLog
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.AuditLog{}, fmt.Errorf("decode audit event: %w", err)
	}
	return entry, nil
}

// WriteLine prints one entry in the format used by the tail command.
func WriteLine(w io.Writer, e models.AuditLog) error {
	line := fmt.Sprintf("%s  %-32s %-24s", e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.Action, e.Target)
	if e.IPAddress != nil {
		line += "  " + *e.IPAddress
	}
	if e.Details != nil {
		line += "  " + *e.Details
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
