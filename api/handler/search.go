package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/syphon/cache"
	"github.com/use-agent/syphon/models"
)

// Search returns a handler for POST /api/v1/search: synchronous discovery
// without any downloading. Identical queries are served from the cache so
// agents polling the same phrase do not hammer the backend.
func Search(collector Collector, qc *cache.Cache, allowedDomains []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: err.Error(),
				},
			})
			return
		}
		if req.MaxResults <= 0 {
			req.MaxResults = 10
		}

		key := cache.Key(req.Query, req.MaxResults, allowedDomains)
		if urls, ok := qc.Get(key); ok {
			c.JSON(http.StatusOK, models.SearchResponse{
				Success:     true,
				Query:       req.Query,
				URLs:        urls,
				Total:       len(urls),
				CacheStatus: "hit",
			})
			return
		}

		urls, err := collector.Discover(c.Request.Context(), req.Query, req.MaxResults)
		if err != nil {
			status, detail := searchError(err)
			c.JSON(status, models.SearchResponse{
				Success: false,
				Query:   req.Query,
				Error:   detail,
			})
			return
		}

		qc.Set(key, urls)
		c.JSON(http.StatusOK, models.SearchResponse{
			Success:     true,
			Query:       req.Query,
			URLs:        urls,
			Total:       len(urls),
			CacheStatus: "miss",
		})
	}
}

// searchError maps a discovery error to an HTTP status and detail.
func searchError(err error) (int, *models.ErrorDetail) {
	var ce *models.CollectError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, &models.ErrorDetail{
			Code:    models.ErrCodeInternal,
			Message: err.Error(),
		}
	}

	switch ce.Code {
	case models.ErrCodeNoResults:
		return http.StatusNotFound, ce.ToDetail()
	case models.ErrCodeSearchTransport:
		return http.StatusBadGateway, ce.ToDetail()
	case models.ErrCodeConfiguration:
		return http.StatusBadRequest, ce.ToDetail()
	}
	return http.StatusInternalServerError, ce.ToDetail()
}
