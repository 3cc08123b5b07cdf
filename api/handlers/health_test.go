package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_Liveness(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "contextgate", status.Service)
}

func TestHealthHandler_ReadyAllPass(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(Check{Name: "store", Probe: func(context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "pass", status.Checks["store"].Status)
}

func TestHealthHandler_ReadyFailingProbe(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(Check{Name: "store", Probe: func(context.Context) error { return nil }})
	h.RegisterCheck(Check{Name: "upstream", Probe: func(context.Context) error {
		return errors.New("connection refused")
	}})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "pass", status.Checks["store"].Status)
	assert.Equal(t, "fail", status.Checks["upstream"].Status)
	assert.Equal(t, "connection refused", status.Checks["upstream"].Message)
}
