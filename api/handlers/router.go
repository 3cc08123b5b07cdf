package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/internal/ctxkeys"
	"github.com/contextgate/contextgate/internal/metrics"
)

// NewRouter assembles the proxy's HTTP surface. Every route passes through
// the request id, access log, and metrics middleware.
func NewRouter(chat *ChatHandler, sessions *SessionHandler, models *ModelsHandler, health *HealthHandler, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", chat.HandleCompletion)
	mux.HandleFunc("GET /v1/models", models.HandleList)
	mux.HandleFunc("GET /v1/sessions/{id}", sessions.HandleGet)
	mux.HandleFunc("DELETE /v1/sessions/{id}", sessions.HandleDelete)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", sessions.HandleReset)
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)

	return instrument(mux, collector, logger.With(zap.String("component", "http")))
}

// instrument wraps the mux with request id assignment, access logging,
// and per-route metrics. The route pattern, not the raw path, is the
// metrics label so path parameters do not explode cardinality.
func instrument(next http.Handler, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(ctxkeys.WithRequestID(r.Context(), requestID))

		rw := NewResponseWriter(w)
		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}

		if collector != nil {
			collector.RecordHTTPRequest(r.Method, pattern, rw.StatusCode, elapsed)
		}
		logger.Info("request handled",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.StatusCode),
			zap.Duration("elapsed", elapsed),
		)
	})
}
