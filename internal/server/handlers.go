package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"grantsync/internal/domain"
)

const defaultLogLimit = 50

// syncSource triggers one source and reports its counts. A failed run is an
// operator-visible error response carrying whatever was tallied before the
// fetch error.
func (s *Server) syncSource(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.syncer.SyncByID(c.Request.Context(), id)
		if err != nil {
			s.logger.Error("sync trigger failed", "source", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		if result.Status == domain.SyncFailed {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":   false,
				"error":     result.Error,
				"processed": result.Processed,
				"created":   result.Created,
				"updated":   result.Updated,
				"failed":    result.Failed,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"processed": result.Processed,
			"created":   result.Created,
			"updated":   result.Updated,
			"failed":    result.Failed,
		})
	}
}

// syncBatch triggers a multi-source run. Individual source failures are
// reported inside results; only a batch-level error fails the request.
func (s *Server) syncBatch(run func(ctx context.Context) (*domain.RunSummary, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := run(c.Request.Context())
		if err != nil {
			s.logger.Error("batch sync trigger failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"total_processed": summary.Processed,
			"total_created":   summary.Created,
			"total_updated":   summary.Updated,
			"total_failed":    summary.Failed,
			"results":         summary.Results,
		})
	}
}

func (s *Server) listLogs(c *gin.Context) {
	limit := defaultLogLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.syncer.Logs(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list sync logs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sync logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
