package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	logger *zap.Logger
	checks []Check
	mu     sync.RWMutex
}

// Check probes one dependency for readiness.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy, unhealthy
	Service   string                 `json:"service"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency's probe outcome.
type CheckResult struct {
	Status  string `json:"status"` // pass, fail
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger: logger.With(zap.String("component", "health_handler")),
	}
}

// RegisterCheck adds a readiness probe.
func (h *HealthHandler) RegisterCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// HandleHealth handles GET /health. Liveness only; no dependencies are
// probed.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Service:   "contextgate",
		Timestamp: time.Now(),
	})
}

// HandleReady handles GET /ready. Every registered probe must pass.
// Probes run concurrently so one slow dependency does not stack latency
// onto the rest.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]Check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Probe(ctx)
			latency := time.Since(start)

			results[i] = CheckResult{
				Status:  "pass",
				Latency: latency.String(),
			}
			if err != nil {
				results[i].Status = "fail"
				results[i].Message = err.Error()

				h.logger.Warn("readiness check failed",
					zap.String("check", check.Name),
					zap.Error(err),
					zap.Duration("latency", latency),
				)
				return err
			}
			return nil
		})
	}
	failed := g.Wait() != nil

	status := HealthStatus{
		Status:    "healthy",
		Service:   "contextgate",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, check := range checks {
		status.Checks[check.Name] = results[i]
	}

	if failed {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
