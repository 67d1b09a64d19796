package models

import "time"

// Job run statuses.
const (
	JobRunStatusRunning = "running"
	JobRunStatusSuccess = "success"
	JobRunStatusError   = "error"
	JobRunStatusSkipped = "skipped"
)

// JobRun records a single execution of a background job: when it ran,
// how it finished, and free-form details for operators.
type JobRun struct {
	ID           string                 `json:"id"`
	JobName      string                 `json:"job_name"`
	Status       string                 `json:"status"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
	Details      map[string]interface{} `json:"details"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}
