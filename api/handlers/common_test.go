package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

func TestWriteError_TypedError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, types.NewError(types.ErrInvalidRequest, "bad input"), zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bad input", resp.Error.Message)
	assert.Equal(t, "invalid_request_error", resp.Error.Type)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
}

func TestWriteError_ExplicitStatusWins(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrProviderUnavailable, "throttled").WithHTTPStatus(http.StatusTooManyRequests)
	WriteError(rec, err, zap.NewNop())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWriteError_UnknownErrorBecomesInternal(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("something broke"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal_error", resp.Error.Type)
	assert.Equal(t, "internal server error", resp.Error.Message, "cause is not leaked to the client")
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, mapErrorCodeToHTTPStatus(types.ErrSessionIDRequired))
	assert.Equal(t, http.StatusBadRequest, mapErrorCodeToHTTPStatus(types.ErrUnsupportedReductionMode))
	assert.Equal(t, http.StatusGatewayTimeout, mapErrorCodeToHTTPStatus(types.ErrUpstreamTimeout))
	assert.Equal(t, http.StatusServiceUnavailable, mapErrorCodeToHTTPStatus(types.ErrStoreUnavailable))
	assert.Equal(t, http.StatusInternalServerError, mapErrorCodeToHTTPStatus(types.ErrInternalError))
}

func TestDecodeJSONBody_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"surprise": true}`))

	var dst struct {
		Known string `json:"known"`
	}
	err := DecodeJSONBody(rec, req, &dst, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // second call ignored
	rw.Write([]byte("body"))

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	rw = NewResponseWriter(rec)
	rw.Write([]byte("implicit 200"))
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
