// Package http exposes the SPECTRUM HTTP API: student records, evaluation
// events, admin scans, the activity feed and the live WebSocket stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alem-hub/spectrum/internal/application/command"
	"github.com/alem-hub/spectrum/internal/application/query"
	"github.com/alem-hub/spectrum/internal/infrastructure/metrics"
	"github.com/alem-hub/spectrum/internal/infrastructure/scheduler"
	"github.com/alem-hub/spectrum/internal/interface/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to listen on (default: ":8080").
	Addr string

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// Release switches gin to release mode.
	Release bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
// Hub, Scheduler and Health are optional.
type Dependencies struct {
	// Commands (write side)
	Onboard      *command.OnboardStudentHandler
	Adjust       *command.AdjustStudentHandler
	Ledger       *command.Ledger
	Achievements *command.AchievementScanner
	Security     *command.SecurityScanner
	ResolveAlert *command.ResolveAlertHandler

	// Queries (read side)
	Profile     *query.GetStudentProfileHandler
	Search      *query.SearchStudentsHandler
	History     *query.GetRatingHistoryHandler
	Leaderboard *query.GetLeaderboardHandler
	Department  *query.GetDepartmentStatsHandler
	AtRisk      *query.ListAtRiskHandler
	TopByGPA    *query.TopByGPAHandler
	Alerts      *query.ListAlertsHandler
	Activity    *query.ListActivityHandler

	Hub       *realtime.Hub
	Scheduler *scheduler.Scheduler
	Health    *HealthChecker

	Logger *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker("")
	}
	if config.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: gin.New(),
		logger: deps.Logger.With("component", "http"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Addr,
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal_error", "An unexpected error occurred"))
	}))
	s.router.Use(metrics.Middleware())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

const requestIDKey = "request_id"

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		}

		switch {
		case status >= 500:
			s.logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			s.logger.Warn("request completed", attrs...)
		default:
			s.logger.Debug("request completed", attrs...)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// Health & metrics
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", metrics.Handler())

	if s.deps.Hub != nil {
		s.router.GET("/ws", gin.WrapF(s.deps.Hub.HandleWebSocket))
	}

	api := s.router.Group("/api")
	api.GET("/leaderboard", s.handleLeaderboard)

	students := api.Group("/students")
	students.POST("", s.handleOnboard)
	students.GET("/search", s.handleSearch)
	students.GET("/:id", s.handleProfile)
	students.POST("/:id/events", s.handleApplyEvent)
	students.GET("/:id/rating-history", s.handleRatingHistory)
	students.POST("/:id/xp", s.handleGrantXP)
	students.PUT("/:id/status", s.handleChangeStatus)

	admin := api.Group("/admin")
	admin.POST("/scans/achievements", s.handleAchievementScan)
	admin.POST("/scans/security", s.handleSecurityScan)
	admin.GET("/alerts", s.handleListAlerts)
	admin.POST("/alerts/:id/resolve", s.handleResolveAlert)
	admin.GET("/department-stats", s.handleDepartmentStats)
	admin.GET("/at-risk", s.handleAtRisk)
	admin.GET("/top-by-gpa", s.handleTopByGPA)
	admin.GET("/activity", s.handleActivity)
	admin.GET("/jobs", s.handleJobs)
	admin.POST("/jobs/:name/run", s.handleRunJob)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start runs the server until Shutdown. It returns nil after a graceful
// shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("HTTP server starting", "addr", s.config.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine. The channel receives the
// listen error, if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
