package models

import "time"

// Job run statuses. A run is created RUNNING and finalized exactly once.
const (
	JobStatusRunning = "RUNNING"
	JobStatusSuccess = "SUCCESS"
	JobStatusFailed  = "FAILED"
)

// Trigger sources.
const (
	TriggerScheduler = "SCHEDULER"
	TriggerManual    = "MANUAL"
)

// JobRun is the audit record of one execution attempt of a scheduled or
// manually triggered job.
type JobRun struct {
	ID          string                 `json:"id"`
	JobName     string                 `json:"jobName"`
	Status      string                 `json:"status"`
	TriggeredBy string                 `json:"triggeredBy"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	DurationMs  int64                  `json:"durationMs"`
	Stats       map[string]interface{} `json:"stats,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// JobResult is what a trigger entry point returns synchronously.
type JobResult struct {
	JobRunID   string                 `json:"jobRunId,omitempty"`
	Skipped    bool                   `json:"skipped"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"durationMs"`
	Stats      map[string]interface{} `json:"stats,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// JobStatus is the per-job snapshot exposed to the excluded UI layer.
type JobStatus struct {
	Name                string     `json:"name"`
	Enabled             bool       `json:"enabled"`
	Running             bool       `json:"running"`
	Schedule            string     `json:"schedule,omitempty"`
	ScheduleDescription string     `json:"scheduleDescription,omitempty"`
	NextRun             *time.Time `json:"nextRun,omitempty"`
}
