package models

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	// Success indicates whether discovery completed without errors.
	Success bool `json:"success"`

	// Query echoes the search phrase that produced the URLs.
	Query string `json:"query"`

	// URLs are the discovered candidate URLs in first-seen order.
	URLs []string `json:"urls"`

	// Total is len(URLs), provided for convenience.
	Total int `json:"total"`

	// CacheStatus indicates whether discovery was served from cache.
	// Values: "hit", "miss".
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string     `json:"status"` // "healthy"
	Uptime  string     `json:"uptime"`
	Version string     `json:"version"`
	Queue   QueueStats `json:"queue"`
}

// QueueStats reports the state of the job queue.
type QueueStats struct {
	// Capacity is the maximum number of queued jobs.
	Capacity int `json:"capacity"`
	// Pending is the number of jobs waiting for the worker.
	Pending int `json:"pending"`
}
