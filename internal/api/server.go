package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/geoclock/timekeeper/internal/api/middleware"
	v2 "github.com/geoclock/timekeeper/internal/api/v2"
	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/observability"
)

// Server is the HTTP server of timekeeper.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger
	metrics  *observability.Metrics
	version  string

	wg      sync.WaitGroup
	errOnce sync.Once
	errCh   chan error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics sets the metrics registry exposed on /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithVersion sets the version reported by health checks.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithConfig replaces the configuration derived from settings.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// New creates a new HTTP server with the given settings and services.
func New(settings *conf.Settings, deps v2.Deps, opts ...ServerOption) (*Server, error) {
	s := &Server{
		config:   ConfigFromSettings(settings),
		settings: settings,
		version:  "dev",
		errCh:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"))
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.IdleTimeout
	s.echo.Validator = &v2.RequestValidator{}

	s.setupMiddleware()

	if _, err := v2.New(s.echo, deps, settings,
		v2.WithLogger(s.log.Module("v2")),
		v2.WithVersion(s.version)); err != nil {
		return nil, fmt.Errorf("failed to initialize API v2: %w", err)
	}

	if s.config.MetricsEnabled && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", s.config.Listen),
		logger.Bool("metrics", s.config.MetricsEnabled && s.metrics != nil),
		logger.Bool("debug", s.config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	requestLog := s.log.Module("http")
	s.echo.Use(mw.NewRequestLoggerWithSkipper(requestLog, func(c echo.Context) bool {
		return !s.config.Debug && c.Path() == "/metrics"
	}))

	security := mw.SecurityConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		BodyLimit:      s.config.BodyLimit,
	}
	s.echo.Use(mw.NewCORS(security))
	s.echo.Use(mw.NewBodyLimit(security.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

// Start begins serving in a background goroutine and returns immediately.
// Errors other than a clean shutdown are reported by Err.
func (s *Server) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", logger.Error(err))
			s.errOnce.Do(func() { s.errCh <- err })
		}
	}()
}

// Err delivers the error that stopped the server, if any.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Run serves until ctx is done or the server fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.Start()
	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		return s.Shutdown()
	case err := <-s.errCh:
		_ = s.Shutdown()
		return fmt.Errorf("server error: %w", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

