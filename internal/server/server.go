// Package server exposes the sync trigger API. Every trigger is a stateless
// POST returning a structured JSON summary; adapter and store failures are
// mapped into the response, never surfaced as an unhandled error.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"grantsync/internal/domain"
)

// Syncer is the slice of the sync service the API consumes.
type Syncer interface {
	SyncByID(ctx context.Context, id string) (*domain.SourceResult, error)
	SyncStatePortals(ctx context.Context) (*domain.RunSummary, error)
	SyncAll(ctx context.Context) (*domain.RunSummary, error)
	Logs(ctx context.Context, limit int) ([]domain.SyncLogEntry, error)
}

type Server struct {
	syncer Syncer
	logger *slog.Logger
	engine *gin.Engine
}

func New(syncer Syncer, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		syncer: syncer,
		logger: logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/healthz", s.health)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/sync/grants-gov", s.syncSource(domain.SourceGrantsGov))
		v1.POST("/sync/usaspending", s.syncSource(domain.SourceUSASpending))
		v1.POST("/sync/state-portals", s.syncBatch(s.syncer.SyncStatePortals))
		v1.POST("/sync/all", s.syncBatch(s.syncer.SyncAll))
		v1.GET("/sync/logs", s.listLogs)
	}

	s.engine = engine
	return s
}

// Router exposes the handler for tests and for the HTTP server in main.
func (s *Server) Router() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
