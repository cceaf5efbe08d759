// Package api implements the v2 JSON API: correction requests, clock
// actions, reconcile triggers and read endpoints over entries and work days.
package api

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/geoclock/timekeeper/internal/api/auth"
	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/ledger"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/punch"
	"github.com/geoclock/timekeeper/internal/workday"
)

// healthTimeout bounds the database ping of the health check.
const healthTimeout = 2 * time.Second

// Deps are the services the controller exposes.
type Deps struct {
	Repos      *repository.Repositories
	Ledger     *ledger.Ledger
	Punch      *punch.Service
	Aggregator *workday.Aggregator
	Zones      *localday.Resolver
	Tokens     *auth.TokenService
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Version  string

	repos      *repository.Repositories
	ledger     *ledger.Ledger
	punch      *punch.Service
	aggregator *workday.Aggregator
	zones      *localday.Resolver
	tokens     *auth.TokenService

	logger    logger.Logger
	startTime time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithVersion sets the version reported by the health check.
func WithVersion(v string) Option {
	return func(c *Controller) {
		c.Version = v
	}
}

// New creates the controller and registers its routes under /api/v2.
func New(e *echo.Echo, deps Deps, settings *conf.Settings, opts ...Option) (*Controller, error) {
	switch {
	case deps.Repos == nil, deps.Ledger == nil, deps.Punch == nil, deps.Aggregator == nil:
		return nil, errors.Newf("api controller requires repositories, ledger, punch service and aggregator").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	case deps.Tokens == nil:
		return nil, errors.Newf("api controller requires a token service").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		settings = &conf.Settings{}
	}

	c := &Controller{
		Echo:       e,
		Group:      e.Group("/api/v2"),
		Settings:   settings,
		Version:    "dev",
		repos:      deps.Repos,
		ledger:     deps.Ledger,
		punch:      deps.Punch,
		aggregator: deps.Aggregator,
		zones:      deps.Zones,
		tokens:     deps.Tokens,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Global().Module("api")
	}
	if c.zones == nil {
		zones, err := localday.NewResolver(settings.Policy.DefaultTimezone)
		if err != nil {
			return nil, err
		}
		c.zones = zones
	}
	if e.Validator == nil {
		e.Validator = &RequestValidator{}
	}

	c.initRoutes()
	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"entry routes", c.initEntryRoutes},
		{"correction routes", c.initCorrectionRoutes},
		{"work day routes", c.initWorkDayRoutes},
		{"clock routes", c.initClockRoutes},
	}

	for _, initializer := range routeInitializers {
		c.logger.Debug("initializing routes", logger.String("group", initializer.name))
		initializer.fn()
	}
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"version":   c.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(c.startTime).Round(time.Second).String(),
	}

	dbStatus := "connected"
	pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
	defer cancel()
	if sqlDB, err := c.repos.DB().DB(); err != nil || sqlDB.PingContext(pingCtx) != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
	}
	response["database_status"] = dbStatus

	code := http.StatusOK
	if dbStatus != "connected" {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, response)
}

// Error response structure
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// ResultErrorResponse is an error response that carries what the failed
// operation still did, so a client can retry only the remainder.
type ResultErrorResponse struct {
	*ErrorResponse
	Result any `json:"result,omitempty"`
}

// generateCorrelationID creates a unique identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	return c.respondError(ctx, NewErrorResponse(err, message, code), err, nil)
}

// handleServiceError maps an error category to its HTTP status. Server
// side failures are answered with a generic message; the cause is logged.
// result, when non-nil, is attached to the response.
func (c *Controller) handleServiceError(ctx echo.Context, err error, result any) error {
	code, message := statusFor(err)
	resp := NewErrorResponse(err, message, code)
	if code >= http.StatusInternalServerError {
		resp.Error = http.StatusText(code)
	}
	return c.respondError(ctx, resp, err, result)
}

func (c *Controller) respondError(ctx echo.Context, resp *ErrorResponse, err error, result any) error {
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", resp.Message),
		logger.Int("code", resp.Code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.String("error", logger.RedactSensitiveData(err.Error())))
	}
	fields = logger.RedactSensitiveFields(fields)
	log := c.logger.WithContext(ctx.Request().Context())
	if resp.Code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API request rejected", fields...)
	}

	if result != nil {
		return ctx.JSON(resp.Code, &ResultErrorResponse{ErrorResponse: resp, Result: result})
	}
	return ctx.JSON(resp.Code, resp)
}

func statusFor(err error) (int, string) {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest, "invalid request"
	case errors.CategoryNotFound:
		return http.StatusNotFound, "resource not found"
	case errors.CategoryForbidden:
		return http.StatusForbidden, "access denied"
	case errors.CategoryConflict:
		return http.StatusConflict, "request conflicts with an earlier operation"
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout, "request timed out"
	case errors.CategoryCancellation:
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "request failed"
	}
}
