// Package http is the pipeline's ingress adapter (C9): a thin gin layer
// translating the §6 HTTP API onto the orchestrator, audit log, and export
// adapters. It holds no pipeline logic of its own.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config holds the HTTP server's own listen/timeout settings, independent
// of the pipeline config it serves.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps a gin.Engine and its lifecycle, grounded on the donor's
// graceful-shutdown Server adapter.
type Server struct {
	cfg    Config
	router *gin.Engine
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the router and registers every §6 route against h.
func NewServer(cfg Config, h *Handlers, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	api := router.Group("/api/pipeline")
	{
		api.POST("/ingest", h.Ingest)
		api.GET("/status", h.Status)
		api.GET("/result", h.Result)
		api.GET("/audit", h.Audit)
		api.GET("/stats", h.Stats)
		api.POST("/review/apply", h.ReviewApply)
		api.GET("/health", h.Health)
		api.GET("/export", h.Export)
	}

	return &Server{cfg: cfg, router: router, logger: logger}
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// corsMiddleware allows any origin to call the API; ingress has no
// session/cookie auth surface for a CSRF-style restriction to protect.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Router exposes the underlying engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully within 10s.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.logger != nil {
		s.logger.Info("http server listening", zap.String("address", addr))
	}

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
