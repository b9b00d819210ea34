package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	shutdown, mw, err := Init(context.Background(), Options{ServiceName: "adconsole", Logger: zerolog.New(&buf)})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/users", line["path"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
}

func TestInitRequiresServiceName(t *testing.T) {
	_, _, err := Init(context.Background(), Options{})
	assert.Error(t, err)
}

func TestNewTraceExporterRejectsHostlessURL(t *testing.T) {
	_, err := newTraceExporter(context.Background(), "http://")
	assert.Error(t, err)
}
