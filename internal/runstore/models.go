package runstore

import (
	"fmt"
	"time"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var statusSet = map[Status]struct{}{
	StatusRunning:   {},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// ParseStatus validates a stored run status.
func ParseStatus(value string) (Status, error) {
	if _, ok := statusSet[Status(value)]; !ok {
		return "", fmt.Errorf("unknown run status %q", value)
	}
	return Status(value), nil
}

// Run is one synthesis run's stored state. A run is completed whenever it
// produced a full manifest, regardless of how many segments failed inside
// it; failed is reserved for runs that could not execute at all.
type Run struct {
	RunID          string     `json:"run_id"`
	Status         Status     `json:"status"`
	ModelID        string     `json:"model_id"`
	TargetLanguage string     `json:"target_language"`
	TotalSegments  int        `json:"total_segments"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	ManifestPath   string     `json:"manifest_path,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the run has finished.
func (r *Run) Terminal() bool {
	return r.Status != StatusRunning
}

// Duration returns how long the run took, or has been going.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}
