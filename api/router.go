package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/syphon/api/handler"
	"github.com/use-agent/syphon/api/middleware"
	"github.com/use-agent/syphon/cache"
	"github.com/use-agent/syphon/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(collector handler.Collector, jm *handler.JobManager, cfg *config.Config, qc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(jm, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Synchronous discovery.
	protected.POST("/search", handler.Search(collector, qc, cfg.Search.AllowedDomains))

	// Queued runs.
	protected.POST("/collect", handler.Collect(jm))
	protected.POST("/fetch", handler.Fetch(jm))
	protected.GET("/jobs/:id", handler.GetJob(jm))

	return r
}
