package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/syphon/models"
)

// Collector is the handlers' view of the pipeline.
type Collector interface {
	Run(ctx context.Context, req models.CollectRequest) (*models.RunOutcome, error)
	Discover(ctx context.Context, query string, max int) ([]string, error)
}

// JobManager queues collection runs and executes them on a single worker
// goroutine. The anonymizing identity is a process-wide resource, so runs
// are never concurrent; the bounded queue provides ordering and
// backpressure.
type JobManager struct {
	collector Collector

	mu    sync.RWMutex
	jobs  map[string]*models.Job
	queue chan *models.Job
}

// NewJobManager starts the worker and the job expiry loop.
func NewJobManager(collector Collector, queueSize int) *JobManager {
	m := &JobManager{
		collector: collector,
		jobs:      make(map[string]*models.Job),
		queue:     make(chan *models.Job, queueSize),
	}
	go m.worker()
	go m.expireLoop()
	return m
}

// Submit enqueues a run and returns its job. A full queue rejects the
// submission instead of blocking the caller.
func (m *JobManager) Submit(req models.CollectRequest) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.NewString(),
		Status:    models.JobQueued,
		Request:   req,
		CreatedAt: time.Now().Unix(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case m.queue <- job:
		m.jobs[job.ID] = job
		return job, nil
	default:
		return nil, models.NewCollectError(models.ErrCodeQueueFull,
			"job queue is full, retry later", nil)
	}
}

// Get returns a snapshot of the job so callers never observe a job mid-update.
func (m *JobManager) Get(id string) (models.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Stats reports queue capacity and backlog for the health endpoint.
func (m *JobManager) Stats() models.QueueStats {
	return models.QueueStats{Capacity: cap(m.queue), Pending: len(m.queue)}
}

func (m *JobManager) worker() {
	for job := range m.queue {
		m.setRunning(job.ID)
		slog.Info("job started", "id", job.ID)

		outcome, err := m.collector.Run(context.Background(), job.Request)
		m.finish(job.ID, outcome, err)

		if err != nil {
			slog.Warn("job failed", "id", job.ID, "error", err)
		} else {
			slog.Info("job finished", "id", job.ID,
				"discovered", outcome.Summary.Discovered,
				"succeeded", outcome.Summary.Succeeded,
			)
		}
	}
}

func (m *JobManager) setRunning(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobRunning
	}
}

func (m *JobManager) finish(id string, outcome *models.RunOutcome, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	job.FinishedAt = time.Now().Unix()
	if err != nil {
		job.Status = models.JobFailed
		job.Error = errorDetail(err)
		return
	}
	job.Status = models.JobCompleted
	job.Outcome = outcome
}

// expireLoop evicts jobs older than 1 hour every 5 minutes.
func (m *JobManager) expireLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour).Unix()
		m.mu.Lock()
		for id, job := range m.jobs {
			if job.CreatedAt < cutoff && job.Status != models.JobQueued && job.Status != models.JobRunning {
				delete(m.jobs, id)
			}
		}
		m.mu.Unlock()
	}
}

// Collect returns a handler for POST /api/v1/collect.
// The run is queued; the response carries the job id to poll.
func Collect(jm *JobManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CollectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: err.Error(),
				},
			})
			return
		}

		if req.Query == "" && len(req.URLs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: "either query or urls is required",
				},
			})
			return
		}
		if !req.Audio && !req.Video && !req.Transcript {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: "select at least one of audio, video, transcript",
				},
			})
			return
		}

		submit(c, jm, req)
	}
}

// Fetch returns a handler for POST /api/v1/fetch: dispatch-only runs over
// an explicit URL list.
func Fetch(jm *JobManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: err.Error(),
				},
			})
			return
		}

		if !req.Audio && !req.Video && !req.Transcript {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: "select at least one of audio, video, transcript",
				},
			})
			return
		}

		submit(c, jm, req.ToCollect())
	}
}

func submit(c *gin.Context, jm *JobManager, req models.CollectRequest) {
	job, err := jm.Submit(req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorDetail(err)})
		return
	}
	c.JSON(http.StatusAccepted, models.JobResponse{ID: job.ID, Status: job.Status})
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob(jm *JobManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jm.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeJobNotFound,
					Message: "job not found",
				},
			})
			return
		}

		c.JSON(http.StatusOK, models.JobStatusResponse{
			ID:      job.ID,
			Status:  job.Status,
			Outcome: job.Outcome,
			Error:   job.Error,
		})
	}
}

// errorDetail converts any error into an API-facing detail.
func errorDetail(err error) *models.ErrorDetail {
	if ce, ok := err.(*models.CollectError); ok {
		return ce.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}
