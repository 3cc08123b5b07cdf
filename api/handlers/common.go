// Package handlers implements the HTTP handlers behind the proxy surface.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/contextgate/contextgate/types"
)

// ErrorResponse is the OpenAI-compatible error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error message in the shape OpenAI clients parse.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError maps any error to an OpenAI-compatible error body. Typed
// errors carry their own status; anything else is an internal error.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var typed *types.Error
	if !errors.As(err, &typed) {
		typed = types.NewError(types.ErrInternalError, "internal server error").WithCause(err)
	}

	status := typed.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(typed.Code)
	}

	if logger != nil {
		logger.Error("request failed",
			zap.String("code", string(typed.Code)),
			zap.String("message", typed.Message),
			zap.Int("status", status),
			zap.Bool("retryable", typed.Retryable),
			zap.Error(typed.Cause),
		)
	}

	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Message: typed.Message,
		Type:    errorType(status),
		Code:    string(typed.Code),
	}})
}

func errorType(status int) string {
	if status >= 400 && status < 500 {
		return "invalid_request_error"
	}
	return "internal_error"
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest,
		types.ErrUnsupportedReductionMode,
		types.ErrSessionIDRequired,
		types.ErrInvalidThresholds,
		types.ErrInvalidRule,
		types.ErrInvalidConfig:
		return http.StatusBadRequest
	case types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrProviderUnavailable, types.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes the request body into dst, rejecting unknown
// fields. On failure the error response has already been written.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code for
// logging and metrics.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
