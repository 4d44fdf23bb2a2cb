// Package server provides the read-side HTTP API: recent decisions,
// consensus events, health, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/store"
)

// Server serves the HTTP API.
type Server struct {
	echo      *echo.Echo
	decisions *store.DecisionStore
	events    *store.EventStore
	logger    *zap.Logger
	config    config.ServerConfig
}

// New creates a Server.
func New(cfg config.ServerConfig, decisions *store.DecisionStore, events *store.EventStore, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if decisions == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		decisions: decisions,
		events:    events,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes(gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/decisions", s.handleDecisions)
	v1.GET("/events", s.handleEvents)
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// DecisionResponse is one decision in GET /api/v1/decisions.
type DecisionResponse struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	Ticker        string    `json:"ticker"`
	Signal        string    `json:"signal"`
	Confidence    int       `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	ModelProvider string    `json:"model_provider"`
	ModelName     string    `json:"model_name"`
	Eligible      bool      `json:"eligible"`
	RejectReason  string    `json:"reject_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventResponse is one consensus event in GET /api/v1/events.
type EventResponse struct {
	RunID       string    `json:"run_id"`
	Key         string    `json:"key"`
	Ticker      string    `json:"ticker"`
	Signal      string    `json:"signal"`
	Description string    `json:"description"`
	Confidence  int       `json:"confidence"`
	Supporters  []string  `json:"supporters"`
	Promoted    bool      `json:"promoted"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleDecisions(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rows, err := s.decisions.List(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("listing decisions", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing decisions failed")
	}

	out := make([]DecisionResponse, len(rows))
	for i, row := range rows {
		out[i] = DecisionResponse{
			ID:            row.ID,
			SourceID:      row.SourceID,
			Ticker:        row.Ticker,
			Signal:        row.Signal,
			Confidence:    row.Confidence,
			Reasoning:     row.Reasoning,
			ModelProvider: row.ModelProvider,
			ModelName:     row.ModelName,
			Eligible:      row.Eligible,
			RejectReason:  row.RejectReason,
			CreatedAt:     row.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleEvents(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	promotedOnly := c.QueryParam("promoted") == "true"

	rows, err := s.events.List(c.Request().Context(), limit, promotedOnly)
	if err != nil {
		s.logger.Error("listing events", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing events failed")
	}

	out := make([]EventResponse, len(rows))
	for i, row := range rows {
		var supporters []string
		if row.Supporters != "" {
			supporters = strings.Split(row.Supporters, ",")
		}
		out[i] = EventResponse{
			RunID:       row.RunID,
			Key:         row.Key,
			Ticker:      row.Ticker,
			Signal:      row.Signal,
			Description: row.Description,
			Confidence:  row.Confidence,
			Supporters:  supporters,
			Promoted:    row.Promoted,
			CreatedAt:   row.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 500 {
		return 0, fmt.Errorf("limit must be an integer in [1,500]")
	}
	return limit, nil
}

// Start starts the HTTP server and blocks until shutdown.
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

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
