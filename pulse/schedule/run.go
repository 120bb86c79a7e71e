package schedule

import "time"

// Run is one recorded execution of a pipeline task
type Run struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      *string    `json:"error,omitempty"`
}

// Duration is zero while the run is still going
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Counts is what a task reports back to the runner
type Counts struct {
	Processed int
	Skipped   int
	Failed    int
}
