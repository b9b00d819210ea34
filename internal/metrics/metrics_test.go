package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adconsole/internal/audit"
	"adconsole/internal/models"
)

func TestRecorded(t *testing.T) {
	m := New()
	ctx := context.Background()
	for _, action := range []string{audit.ActionLogin, audit.ActionLoginFailed, audit.ActionLoginFailed, audit.ActionUserCreated} {
		require.NoError(t, m.Recorded(ctx, models.AuditLog{Action: action}))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditEntries.WithLabelValues(audit.ActionLoginFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEntries.WithLabelValues(audit.ActionUserCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("bad_credentials")))
}

func TestHandler(t *testing.T) {
	m := New()
	require.NoError(t, m.Recorded(context.Background(), models.AuditLog{Action: "Computer ON"}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `adconsole_audit_entries_total{action="Computer ON"} 1`))
}
