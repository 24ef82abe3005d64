package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/schedule"
)

// ScheduledJob ties one named job to a cron cadence. Each tick delegates to
// the executor, so a tick landing while the previous run is still going is
// skipped by single-flight.
type ScheduledJob struct {
	name     string
	executor *Executor
	handler  Handler
	logger   *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	clock   *schedule.Clock
	running bool
}

func NewScheduledJob(name string, executor *Executor, handler Handler, logger *logging.Logger) *ScheduledJob {
	return &ScheduledJob{
		name:     name,
		executor: executor,
		handler:  handler,
		logger:   logger,
	}
}

// Start validates the expression and activates the cadence. Starting an
// already-active wrapper is a no-op.
func (j *ScheduledJob) Start(cronExpr string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		j.logger.Warn("scheduled job already started", logging.WithField("job", j.name))
		return nil
	}

	clock, err := schedule.Parse(cronExpr)
	if err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(cronExpr, j.tick); err != nil {
		return err
	}
	c.Start()

	j.cron = c
	j.clock = clock
	j.running = true

	j.logger.Info("scheduled job started",
		logging.WithField("job", j.name),
		logging.WithField("schedule", cronExpr),
		logging.WithField("description", clock.Describe()))
	return nil
}

// Stop deactivates the cadence. In-flight runs finish on their own.
func (j *ScheduledJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	j.cron.Stop()
	j.cron = nil
	j.running = false

	j.logger.Info("scheduled job stopped", logging.WithField("job", j.name))
}

// IsRunning reports whether the cadence is active (not whether a run is in
// flight right now).
func (j *ScheduledJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Status returns the snapshot for this job.
func (j *ScheduledJob) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	status := models.JobStatus{
		Name:    j.name,
		Enabled: j.running,
		Running: j.executor.Running(j.name),
	}
	if j.clock != nil {
		status.Schedule = j.clock.Expression()
		status.ScheduleDescription = j.clock.Describe()
		if j.running {
			next := j.clock.Next(time.Now())
			status.NextRun = &next
		}
	}
	return status
}

// Trigger runs the job now, outside its cadence.
func (j *ScheduledJob) Trigger(ctx context.Context, triggeredBy string) models.JobResult {
	return j.executor.Run(ctx, j.name, triggeredBy, j.handler)
}

func (j *ScheduledJob) tick() {
	j.executor.Run(context.Background(), j.name, models.TriggerScheduler, j.handler)
}
