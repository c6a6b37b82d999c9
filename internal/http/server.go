// Package http serves threadscan analyses over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/pipeline"
	"github.com/fyrsmithlabs/threadscan/internal/report"
	"github.com/fyrsmithlabs/threadscan/internal/sanitize"
	"github.com/fyrsmithlabs/threadscan/internal/secrets"
)

// MaxThreads caps the number of threads in one analyze request.
const MaxThreads = 1000

// Analyzer runs one analysis over in-memory threads keyed by file name.
type Analyzer interface {
	Analyze(ctx context.Context, threads map[string]string) (*pipeline.Result, error)
}

// Server provides the analyze API.
type Server struct {
	echo     *echo.Echo
	analyzer Analyzer
	guard    *secrets.Guard
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// BodyLimit is an echo size string such as "5M".
	BodyLimit string

	// Gatherer backs GET /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Meter records request metrics. Nil means the global meter provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server. guard may be nil, in which case
// POST /api/v1/scrub is not registered.
func NewServer(analyzer Analyzer, guard *secrets.Guard, logger *zap.Logger, cfg *Config) (*Server, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "5M"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
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
	e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	s := &Server{
		echo:     e,
		analyzer: analyzer,
		guard:    guard,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	if s.guard != nil {
		v1.POST("/scrub", s.handleScrub)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AnalyzeRequest is the request body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Threads map[string]string `json:"threads"`
}

// AnalyzeResponse is the response body for POST /api/v1/analyze.
type AnalyzeResponse struct {
	RunID   string           `json:"run_id"`
	Flags   []detection.Flag `json:"flags"`
	Metrics report.Debug     `json:"metrics"`
	Report  string           `json:"report"`
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string   `json:"content"`
	FindingsCount int      `json:"findings_count"`
	Rules         []string `json:"rules,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid analyze request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Threads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "threads field is required")
	}
	if len(req.Threads) > MaxThreads {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d threads per request", MaxThreads))
	}
	for name := range req.Threads {
		if err := sanitize.ValidateThreadName(name); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	ctx := c.Request().Context()
	res, err := s.analyzer.Analyze(ctx, req.Threads)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return echo.NewHTTPError(499, "request cancelled")
		}
		s.logger.Error("analysis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "analysis failed")
	}

	md, err := report.Markdown(res.Report)
	if err != nil {
		s.logger.Error("rendering report", zap.String("run_id", res.RunID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "report rendering failed")
	}

	flags := res.Flags
	if flags == nil {
		flags = []detection.Flag{}
	}
	return c.JSON(http.StatusOK, AnalyzeResponse{
		RunID:   res.RunID,
		Flags:   flags,
		Metrics: res.Debug,
		Report:  md,
	})
}

func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.guard.Redact(req.Content)
	s.logger.Debug("scrubbed content", zap.Int("findings", len(result.Findings)))

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Text,
		FindingsCount: len(result.Findings),
		Rules:         result.RuleIDs(),
	})
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	return s.echo.Start(s.Addr())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
