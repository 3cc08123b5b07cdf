package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contextgate/contextgate/adaptive"
	"github.com/contextgate/contextgate/api/handlers"
	"github.com/contextgate/contextgate/config"
	"github.com/contextgate/contextgate/internal/metrics"
	"github.com/contextgate/contextgate/internal/server"
	"github.com/contextgate/contextgate/internal/telemetry"
	"github.com/contextgate/contextgate/provider"
	"github.com/contextgate/contextgate/reduction"
	"github.com/contextgate/contextgate/session"
	"github.com/contextgate/contextgate/tokenizer"
	"github.com/contextgate/contextgate/types"
)

// Server wires the proxy together: session store, reduction dispatcher,
// upstream client, HTTP surface, and the metrics endpoint.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	sessions  *session.Manager
	collector *metrics.Collector

	sweepCancel       context.CancelFunc
	rateLimiterCancel context.CancelFunc
}

func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
	}
}

// Start builds the full pipeline and starts both listeners.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("contextgate", s.logger)

	store, err := s.openStore()
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	s.sessions = session.NewManager(store, session.ManagerConfig{
		TTL:           s.cfg.Session.TTL,
		SweepInterval: s.cfg.Session.SweepInterval,
	}, s.logger)
	s.sessions.SetMetrics(s.collector, s.cfg.Session.Backend)

	upstream := provider.NewClient(provider.Config{
		BaseURL:           s.cfg.Provider.BaseURL,
		APIKey:            s.cfg.Provider.APIKey,
		Timeout:           s.cfg.Provider.Timeout,
		SummaryModel:      s.summaryModel(),
		RequestsPerSecond: s.cfg.Provider.RequestsPerSecond,
		Burst:             s.cfg.Provider.Burst,
	}, s.logger)

	estimator := s.buildEstimator()
	dispatcher := reduction.NewDispatcher(estimator, upstream.GenerateSummary, s.logger)

	if s.cfg.Adaptive.Enabled {
		orchestrator, err := adaptive.NewOrchestrator(s.cfg.Adaptive, nil, estimator, upstream.GenerateSummary, s.logger)
		if err != nil {
			return fmt.Errorf("build adaptive orchestrator: %w", err)
		}
		dispatcher.Register(orchestrator.AsReductionStrategy())
		orchestrator.OnFallback(s.collector.RecordAdaptiveFallback)
		// Evicted sessions release their incremental summary state.
		s.sessions.OnEvict(orchestrator.ClearSession)
		s.logger.Info("adaptive summarization enabled",
			zap.String("strategy", string(s.cfg.Adaptive.Strategy)))
	}

	routes := config.NewContextRoutes(s.cfg.Context, s.cfg.ModelRoutes)
	chatHandler := handlers.NewChatHandler(s.sessions, dispatcher, upstream, routes, s.collector, s.logger)
	sessionHandler := handlers.NewSessionHandler(s.sessions, s.logger)
	modelsHandler := handlers.NewModelsHandler(upstream, s.logger)

	healthHandler := handlers.NewHealthHandler(s.logger)
	healthHandler.RegisterCheck(handlers.Check{
		Name: "session_store",
		Probe: func(ctx context.Context) error {
			_, err := store.Get(ctx, "default:readiness-probe")
			return err
		},
	})

	router := handlers.NewRouter(chatHandler, sessionHandler, modelsHandler, healthHandler, s.collector, s.logger)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(router,
		Recovery(s.logger),
		SecurityHeaders(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	s.httpManager = server.NewManager(handler, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	if err := s.startMetricsServer(); err != nil {
		return err
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	s.sweepCancel = sweepCancel
	go s.sessions.Run(sweepCtx)

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("session_backend", s.cfg.Session.Backend),
		zap.String("reduction_mode", s.cfg.Context.ReductionMode),
	)
	return nil
}

// openStore builds the configured session backend.
func (s *Server) openStore() (session.Store, error) {
	switch s.cfg.Session.Backend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
		return session.NewRedisStore(client), nil
	case "sqlite":
		return session.NewSQLiteStore(s.cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown session backend %q", s.cfg.Session.Backend)
	}
}

// buildEstimator picks the token estimator. The tiktoken estimator falls
// back to the heuristic internally when the encoding cannot be loaded.
func (s *Server) buildEstimator() types.TokenEstimator {
	if s.cfg.Context.TokenEstimator == "tiktoken" {
		return tokenizer.NewTiktokenEstimator(s.summaryModel(), s.logger)
	}
	return types.NewHeuristicEstimator()
}

func (s *Server) summaryModel() string {
	if s.cfg.Provider.SummaryModel != "" {
		return s.cfg.Provider.SummaryModel
	}
	return s.cfg.Context.SummarizationModel
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until a signal or server error, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners and background work, then releases the
// store and telemetry exporters.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			s.logger.Error("session store close error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
