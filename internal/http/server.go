// Package http provides the HTTP server, router setup, and shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoHTTP "github.com/medvault/phivault/internal/crypto/http"
	recordsHTTP "github.com/medvault/phivault/internal/records/http"
	rotationHTTP "github.com/medvault/phivault/internal/rotation/http"
)

// Server represents the main API HTTP server.
type Server struct {
	db     *sql.DB
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
	host   string
	port   int
}

// NewServer creates a new HTTP server. The router must be configured with
// SetupRouter before Start is called.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		host:   host,
		port:   port,
	}
}

// RouterConfig holds the handlers and optional middleware used to build the router.
type RouterConfig struct {
	RecordHandler     *recordsHTTP.RecordHandler
	KeyHandler        *cryptoHTTP.KeyHandler
	RotationHandler   *rotationHTTP.RotationHandler
	MetricsMiddleware gin.HandlerFunc
	CORSEnabled       bool
	CORSAllowOrigins  string
}

// SetupRouter builds the Gin router with all API routes and middleware.
func (s *Server) SetupRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.MetricsMiddleware != nil {
		v1.Use(cfg.MetricsMiddleware)
	}

	if cfg.RecordHandler != nil {
		v1.POST("/records", cfg.RecordHandler.CreateHandler)
		v1.GET("/records/:id", cfg.RecordHandler.GetHandler)
	}

	if cfg.KeyHandler != nil {
		v1.GET("/keys", cfg.KeyHandler.ListHandler)
		v1.POST("/keys", cfg.KeyHandler.CreateHandler)
		v1.POST("/keys/:label/promote", cfg.KeyHandler.PromoteHandler)
		v1.POST("/keys/:label/retire", cfg.KeyHandler.RetireHandler)
	}

	if cfg.RotationHandler != nil {
		v1.POST("/rotations", cfg.RotationHandler.StartHandler)
		v1.GET("/rotations/:id", cfg.RotationHandler.StatusHandler)
		v1.POST("/rotations/:id/pause", cfg.RotationHandler.PauseHandler)
		v1.POST("/rotations/:id/resume", cfg.RotationHandler.ResumeHandler)
		v1.POST("/rotations/:id/abort", cfg.RotationHandler.AbortHandler)
		v1.GET("/rotations/:id/events", cfg.RotationHandler.EventsHandler)
	}

	s.router = router
	return router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic. The database
// connection is pinged with a short timeout.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router is not configured: call SetupRouter first")
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
