package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/sandrender/internal/api/http"
	"github.com/GriffinCanCode/sandrender/internal/api/middleware"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/config"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sandrender/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sandrender/internal/providers/http/client"
	"github.com/GriffinCanCode/sandrender/internal/render"
	"github.com/GriffinCanCode/sandrender/internal/render/request"
	"github.com/GriffinCanCode/sandrender/internal/render/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	store   *render.Store
	engine  *render.Engine
	handler http.Handler
	http    *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing render server",
		zap.String("port", cfg.Server.Port),
		zap.Duration("render_timeout", cfg.Render.Timeout),
		zap.Int("max_include_depth", cfg.Render.MaxIncludeDepth),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("sandrender", logger.Logger)

	httpClient := client.New(client.Config{
		Timeout:        cfg.Request.Timeout,
		RetryCount:     cfg.Request.RetryCount,
		RetryWait:      cfg.Request.RetryWait,
		RetryMaxWait:   cfg.Request.RetryMaxWait,
		RateLimit:      cfg.Request.RateLimit,
		UserAgent:      cfg.Request.UserAgent,
		BreakerEnabled: cfg.Request.BreakerEnabled,
		Breaker:        client.DefaultConfig().Breaker,
	})
	adapter := request.New(httpClient,
		request.WithObserver(metrics),
		request.WithLogger(logger.Logger),
	)

	store := render.NewStore(nil)
	engine := render.NewEngine(render.Config{
		Sandbox: sandbox.Config{
			Timeout:          cfg.Render.Timeout,
			MaxCallStackSize: cfg.Render.MaxCallStack,
		},
		MaxIncludeDepth: cfg.Render.MaxIncludeDepth,
		Delimiter:       cfg.Render.Delimiter[0],
	}, adapter,
		render.WithLoader(store),
		render.WithObserver(metrics),
		render.WithTracer(tracer),
		render.WithLogger(logger.Logger),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	apihttp.NewHandlers(apihttp.Deps{
		Engine:       engine,
		Store:        store,
		Metrics:      metrics,
		Breakers:     httpClient,
		StaticPrefix: cfg.Render.StaticPrefix,
		Theme:        cfg.Render.Theme,
		Logger:       logger.Logger,
	}).Register(router)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	return &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		store:   store,
		engine:  engine,
		handler: gzhttp.GzipHandler(router),
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the template store backing named renders and includes.
func (s *Server) Store() *render.Store {
	return s.store
}

// Run serves HTTP until Shutdown is called or the listener fails.
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.http != nil {
		if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(shutdownErr))
			err = fmt.Errorf("failed to shut down http server: %w", shutdownErr)
		}
	}

	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}
