// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the Prometheus metrics for the proxy.
// Metrics are auto-registered on the default registry via promauto.
type Collector struct {
	// HTTP surface
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Context reduction
	reductionsTotal   *prometheus.CounterVec
	reductionDuration *prometheus.HistogramVec
	messagesDropped   *prometheus.CounterVec
	compressionRatio  *prometheus.HistogramVec
	adaptiveFallbacks *prometheus.CounterVec

	// Upstream provider
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	upstreamTokensUsed      *prometheus.CounterVec

	// Sessions
	sessionOpsTotal  *prometheus.CounterVec
	sessionEvictions *prometheus.CounterVec
	sessionsActive   prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates the collector and registers every metric under the
// given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.reductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reductions_total",
			Help:      "Total number of context reduction runs",
		},
		[]string{"mode", "status"},
	)

	c.reductionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reduction_duration_seconds",
			Help:      "Context reduction duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	c.messagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reduction_messages_dropped_total",
			Help:      "Total number of messages removed by reduction",
		},
		[]string{"mode"},
	)

	c.compressionRatio = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reduction_compression_ratio",
			Help:      "Output to input token ratio per reduction run",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"mode"},
	)

	c.adaptiveFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adaptive_fallbacks_total",
			Help:      "Total number of adaptive summarization fallbacks",
		},
		[]string{"reason"},
	)

	c.upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream provider requests",
		},
		[]string{"model", "status"},
	)

	c.upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.upstreamTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_tokens_used_total",
			Help:      "Total number of tokens reported by the upstream provider",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	c.sessionOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Total number of session store operations",
		},
		[]string{"backend", "operation"},
	)

	c.sessionEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Total number of session evictions",
		},
		[]string{"cause"}, // cause: sweep, reset, delete
	)

	c.sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently held by the store",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one handled HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReduction records one context reduction run. A tokensBefore of zero
// skips the ratio observation.
func (c *Collector) RecordReduction(mode, status string, duration time.Duration, messagesBefore, messagesAfter, tokensBefore, tokensAfter int) {
	c.reductionsTotal.WithLabelValues(mode, status).Inc()
	c.reductionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if dropped := messagesBefore - messagesAfter; dropped > 0 {
		c.messagesDropped.WithLabelValues(mode).Add(float64(dropped))
	}
	if tokensBefore > 0 {
		c.compressionRatio.WithLabelValues(mode).Observe(float64(tokensAfter) / float64(tokensBefore))
	}
}

// RecordAdaptiveFallback records one fallback taken by the adaptive
// orchestrator. reason is one of strategy_error, timeout, quality.
func (c *Collector) RecordAdaptiveFallback(reason string) {
	c.adaptiveFallbacks.WithLabelValues(reason).Inc()
}

// RecordUpstreamRequest records one upstream chat completion call.
func (c *Collector) RecordUpstreamRequest(model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.upstreamRequestsTotal.WithLabelValues(model, status).Inc()
	c.upstreamRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.upstreamTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.upstreamTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordSessionOp records one session store operation (get, set, delete).
func (c *Collector) RecordSessionOp(backend, operation string) {
	c.sessionOpsTotal.WithLabelValues(backend, operation).Inc()
}

// RecordSessionEvictions records evicted sessions by cause.
func (c *Collector) RecordSessionEvictions(cause string, count int) {
	if count <= 0 {
		return
	}
	c.sessionEvictions.WithLabelValues(cause).Add(float64(count))
}

// SetActiveSessions updates the active session gauge.
func (c *Collector) SetActiveSessions(count int) {
	c.sessionsActive.Set(float64(count))
}

// statusCode buckets an HTTP status into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
