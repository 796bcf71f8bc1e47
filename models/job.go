package models

// Job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job tracks one queued collection run. Jobs execute on a single worker
// so identity rotation is never shared between concurrent runs.
type Job struct {
	ID         string
	Status     string // "queued", "running", "completed", "failed"
	Request    CollectRequest
	Outcome    *RunOutcome
	Error      *ErrorDetail
	CreatedAt  int64 // unix timestamp
	FinishedAt int64 // unix timestamp, zero while pending
}

// JobResponse is the immediate response for job submissions.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Outcome *RunOutcome  `json:"outcome,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
