package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adconsole/internal/models"
)

type capturePublisher struct {
	subject string
	payload []byte
}

func (c *capturePublisher) Publish(_ context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.subject, c.payload = subject, data
	return nil
}

func TestPublishSinkRoundTrip(t *testing.T) {
	ip, details := "10.0.0.5", "Account locked until 2026-03-01 09:15:00"
	entry := models.AuditLog{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Action:    ActionLoginFailed,
		Target:    "jdoe",
		Details:   &details,
		IPAddress: &ip,
		Metadata:  map[string]any{"failed_attempts": float64(3)},
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	pub := &capturePublisher{}
	require.NoError(t, PublishSink(pub).Recorded(context.Background(), entry))
	assert.Equal(t, Subject, pub.subject)

	got, err := DecodeEvent(pub.payload)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Action, got.Action)
	assert.Equal(t, float64(3), got.Metadata["failed_attempts"])
	assert.True(t, entry.Timestamp.Equal(got.Timestamp))

	_, err = DecodeEvent([]byte("{"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, got))
	assert.Contains(t, buf.String(), "2026-03-01 09:00:00  Failed Login Attempt")
	assert.Contains(t, buf.String(), "10.0.0.5  Account locked")
}
