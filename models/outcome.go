package models

import "time"

// Statuses for one (URL, kind) invocation.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// KindOutcome records a single media-kind invocation for one URL.
type KindOutcome struct {
	Kind       MediaKind `json:"kind"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// RotationRecord captures one identity-rotation attempt and the exit
// addresses observed around it. Advisory only: a failed or unchanged
// rotation never gates the downloads that follow it.
type RotationRecord struct {
	Rotated bool   `json:"rotated"`
	Before  string `json:"before"`
	After   string `json:"after"`
}

// URLOutcome aggregates every invocation made for one URL.
type URLOutcome struct {
	URL      string          `json:"url"`
	Rotation *RotationRecord `json:"rotation,omitempty"`
	Kinds    []KindOutcome   `json:"kinds"`
}

// Succeeded reports whether at least one media kind completed for the URL.
func (u URLOutcome) Succeeded() bool {
	for _, k := range u.Kinds {
		if k.Status == StatusOK {
			return true
		}
	}
	return false
}

// Summary holds the headline counts computed from a finished run.
type Summary struct {
	// Discovered is the number of unique URLs fed into dispatch.
	Discovered int `json:"discovered"`
	// Succeeded is the number of URLs with at least one successful download.
	Succeeded int `json:"succeeded"`
	// FailuresByKind counts failed invocations per media kind.
	FailuresByKind map[MediaKind]int `json:"failures_by_kind"`
	// RotationFailures counts identity rotations that did not complete.
	RotationFailures int `json:"rotation_failures"`
}

// RunOutcome is the accumulated per-URL, per-kind record of one batch
// execution. It is reported once at the end of a run, never retried.
type RunOutcome struct {
	Query      string       `json:"query,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	URLs       []URLOutcome `json:"urls"`
	Summary    Summary      `json:"summary"`
}

// Finalize normalizes timestamps to UTC and computes the summary from the
// accumulated per-URL records. Call once, after the last URL is processed.
func (r *RunOutcome) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := Summary{
		Discovered:     len(r.URLs),
		FailuresByKind: make(map[MediaKind]int),
	}
	for _, u := range r.URLs {
		if u.Succeeded() {
			s.Succeeded++
		}
		if u.Rotation != nil && !u.Rotation.Rotated {
			s.RotationFailures++
		}
		for _, k := range u.Kinds {
			if k.Status == StatusFailed {
				s.FailuresByKind[k.Kind]++
			}
		}
	}
	r.Summary = s
}
