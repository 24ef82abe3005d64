// Package jobs runs named maintenance jobs: single-flight execution with an
// audit trail, cron-driven scheduling, and the scheduler facade that ties the
// standing jobs together.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
)

// Handler is the body of a job. It returns a stats payload for the audit
// record.
type Handler func(ctx context.Context) (map[string]interface{}, error)

// RunStore persists job audit records.
type RunStore interface {
	Create(ctx context.Context, run *models.JobRun) error
	Finalize(ctx context.Context, id, status string, completedAt time.Time, durationMs int64, stats map[string]interface{}, errMsg string) error
}

// Executor runs handlers with single-flight semantics per job name. The
// in-flight registry is owned by the executor, so two executors never share
// state.
type Executor struct {
	store  RunStore
	logger *logging.Logger

	mu       sync.Mutex
	inFlight map[string]time.Time
}

func NewExecutor(store RunStore, logger *logging.Logger) *Executor {
	return &Executor{
		store:    store,
		logger:   logger,
		inFlight: make(map[string]time.Time),
	}
}

// Running reports whether a job with this name is currently executing.
func (e *Executor) Running(jobName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[jobName]
	return ok
}

// Run executes the handler under the job name. If a run with the same name is
// already in flight the call is a logged no-op returning a skipped result.
// Every real run leaves exactly one finalized JobRun row; panics finalize as
// FAILED.
func (e *Executor) Run(ctx context.Context, jobName, triggeredBy string, handler Handler) models.JobResult {
	e.mu.Lock()
	if startedAt, ok := e.inFlight[jobName]; ok {
		e.mu.Unlock()
		e.logger.Warn("job already running, skipping",
			logging.WithField("job", jobName),
			logging.WithField("running_since", startedAt.Format(time.RFC3339)))
		return models.JobResult{Skipped: true}
	}
	startedAt := time.Now()
	e.inFlight[jobName] = startedAt
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, jobName)
		e.mu.Unlock()
	}()

	run := &models.JobRun{
		JobName:     jobName,
		Status:      models.JobStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   startedAt,
	}
	if err := e.store.Create(ctx, run); err != nil {
		e.logger.Error("failed to create job run",
			logging.WithField("job", jobName),
			logging.WithField("error", err.Error()))
		return models.JobResult{Error: err.Error()}
	}

	e.logger.Info("job started",
		logging.WithField("job", jobName),
		logging.WithField("triggered_by", triggeredBy),
		logging.WithField("job_run_id", run.ID))

	stats, runErr := e.invoke(ctx, handler)
	completedAt := time.Now()
	durationMs := completedAt.Sub(startedAt).Milliseconds()

	status := models.JobStatusSuccess
	errMsg := ""
	if runErr != nil {
		status = models.JobStatusFailed
		errMsg = runErr.Error()
	}

	if err := e.store.Finalize(ctx, run.ID, status, completedAt, durationMs, stats, errMsg); err != nil {
		e.logger.Error("failed to finalize job run",
			logging.WithField("job", jobName),
			logging.WithField("job_run_id", run.ID),
			logging.WithField("error", err.Error()))
	}

	if runErr != nil {
		e.logger.Error("job failed",
			logging.WithField("job", jobName),
			logging.WithField("duration_ms", durationMs),
			logging.WithField("error", errMsg))
	} else {
		e.logger.Info("job finished",
			logging.WithField("job", jobName),
			logging.WithField("duration_ms", durationMs))
	}

	return models.JobResult{
		JobRunID:   run.ID,
		Success:    runErr == nil,
		DurationMs: durationMs,
		Stats:      stats,
		Error:      errMsg,
	}
}

// invoke runs the handler, converting a panic into an error so the run is
// finalized FAILED instead of leaving a RUNNING row behind.
func (e *Executor) invoke(ctx context.Context, handler Handler) (stats map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx)
}
