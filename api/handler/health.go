package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/syphon/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports queue backlog and degrades status when the queue is over 80% full.
func Health(jm *JobManager, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := jm.Stats()

		status := "healthy"
		if stats.Capacity > 0 && stats.Pending > int(float64(stats.Capacity)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: "0.1.0",
			Queue:   stats,
		})
	}
}
