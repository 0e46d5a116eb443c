// Package http provides the HTTP API for queryd.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/queryd/internal/document"
	"github.com/fyrsmithlabs/queryd/internal/fingerprint"
)

// Runner answers a batch of questions about one document.
type Runner interface {
	Run(ctx context.Context, docURL string, questions []string) ([]string, error)
}

// Server provides HTTP endpoints for queryd.
type Server struct {
	echo   *echo.Echo
	runner Runner
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Token is the bearer token required on /api/v1 routes. Empty disables
	// authentication.
	Token string
}

// NewServer creates a new HTTP server.
func NewServer(runner Runner, logger *zap.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			observeRequest(c.Request().Method, c.Path(), c.Response().Status, duration.Seconds())
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		runner: runner,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// Prometheus scrape endpoint
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	if s.config.Token != "" {
		v1.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.Token)) == 1, nil
			},
		}))
	}
	v1.POST("/run", s.handleRun)
}

// RunRequest is the request body for POST /api/v1/run.
type RunRequest struct {
	// Documents is the URL of the document to answer questions about.
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

// RunResponse is the response body for POST /api/v1/run.
type RunResponse struct {
	// Answers holds one entry per question, in question order.
	Answers []string `json:"answers"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRun answers every question in the request against the document.
func (s *Server) handleRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid run request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Documents == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}
	if len(req.Questions) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "questions field is required")
	}

	answers, err := s.runner.Run(c.Request().Context(), req.Documents, req.Questions)
	if err != nil {
		s.logger.Error("run failed",
			zap.String("documents", req.Documents),
			zap.Int("questions", len(req.Questions)),
			zap.Error(err))
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, RunResponse{Answers: answers})
}

// mapError converts pipeline failures into HTTP status codes. Input-shaped
// failures are the client's fault; everything else is a 500.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, fingerprint.ErrInvalidInput),
		errors.Is(err, document.ErrUnsupportedFormat):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrFetch),
		errors.Is(err, document.ErrExtraction):
		return echo.NewHTTPError(http.StatusInternalServerError, "document could not be ingested")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
