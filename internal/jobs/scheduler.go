package jobs

import (
	"context"
	"fmt"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
)

// Standing job names.
const (
	JobFeedRefresh = "feed-refresh"
	JobCleanup     = "cleanup"
	JobEmbeddings  = "embedding-backfill"
)

// RefreshDriver is the batch refresh surface the scheduler drives.
type RefreshDriver interface {
	RefreshAllDue(ctx context.Context) (*models.BatchStats, error)
	RefreshUserFeeds(ctx context.Context, userID string) (*models.BatchStats, error)
}

// FeedRefresher refreshes a single feed on demand.
type FeedRefresher interface {
	RefreshFeed(ctx context.Context, feedID, userID string) (*models.RefreshResult, error)
}

// CleanupService prunes articles.
type CleanupService interface {
	Cleanup(ctx context.Context, feedID, userID string) (*models.CleanupResult, error)
}

// EmbeddingService backfills missing embeddings.
type EmbeddingService interface {
	ProcessArticlesWithoutEmbeddings(ctx context.Context, batchSize, maxBatches int) (*models.EmbeddingBatchResult, error)
}

// Config carries the scheduler's cadences and embedding batch limits.
type Config struct {
	Enabled             bool
	RefreshCron         string
	CleanupCron         string
	EmbeddingBatchSize  int
	EmbeddingMaxBatches int
}

// Scheduler is the facade over the standing jobs: the cron-driven feed
// refresh and cleanup, plus the on-demand embedding backfill. All manual
// trigger entry points go through the same executor, so they share
// single-flight and audit semantics with scheduled runs.
type Scheduler struct {
	executor   *Executor
	driver     RefreshDriver
	refresher  FeedRefresher
	cleanup    CleanupService
	embeddings EmbeddingService
	logger     *logging.Logger
	config     Config

	refreshJob *ScheduledJob
	cleanupJob *ScheduledJob
}

func NewScheduler(
	executor *Executor,
	driver RefreshDriver,
	refresher FeedRefresher,
	cleanup CleanupService,
	embeddings EmbeddingService,
	logger *logging.Logger,
	config Config,
) *Scheduler {
	s := &Scheduler{
		executor:   executor,
		driver:     driver,
		refresher:  refresher,
		cleanup:    cleanup,
		embeddings: embeddings,
		logger:     logger,
		config:     config,
	}
	s.refreshJob = NewScheduledJob(JobFeedRefresh, executor, s.runRefresh, logger)
	s.cleanupJob = NewScheduledJob(JobCleanup, executor, s.runCleanup, logger)
	return s
}

// Start activates the standing cadences. Disabled schedulers stay idle but
// still serve manual triggers.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("scheduler disabled, standing jobs not started")
		return nil
	}
	if err := s.refreshJob.Start(s.config.RefreshCron); err != nil {
		return fmt.Errorf("start refresh job: %w", err)
	}
	if err := s.cleanupJob.Start(s.config.CleanupCron); err != nil {
		s.refreshJob.Stop()
		return fmt.Errorf("start cleanup job: %w", err)
	}
	return nil
}

// Stop deactivates the cadences. In-flight runs finish on their own.
func (s *Scheduler) Stop() {
	s.refreshJob.Stop()
	s.cleanupJob.Stop()
}

// Status snapshots every job, including the unscheduled embedding backfill.
func (s *Scheduler) Status() []models.JobStatus {
	return []models.JobStatus{
		s.refreshJob.Status(),
		s.cleanupJob.Status(),
		{
			Name:    JobEmbeddings,
			Enabled: false,
			Running: s.executor.Running(JobEmbeddings),
		},
	}
}

// TriggerRefresh runs the batch refresh now.
func (s *Scheduler) TriggerRefresh(ctx context.Context) models.JobResult {
	return s.refreshJob.Trigger(ctx, models.TriggerManual)
}

// TriggerCleanup runs the retention sweep now.
func (s *Scheduler) TriggerCleanup(ctx context.Context) models.JobResult {
	return s.cleanupJob.Trigger(ctx, models.TriggerManual)
}

// TriggerEmbeddings runs the embedding backfill now.
func (s *Scheduler) TriggerEmbeddings(ctx context.Context) models.JobResult {
	return s.executor.Run(ctx, JobEmbeddings, models.TriggerManual, s.runEmbeddings)
}

// TriggerFeedRefresh refreshes one feed now. Each feed gets its own job name
// so two feeds can refresh concurrently while one feed cannot overlap itself.
func (s *Scheduler) TriggerFeedRefresh(ctx context.Context, feedID, userID string) models.JobResult {
	jobName := JobFeedRefresh + ":" + feedID
	return s.executor.Run(ctx, jobName, models.TriggerManual, func(ctx context.Context) (map[string]interface{}, error) {
		result, err := s.refresher.RefreshFeed(ctx, feedID, userID)
		if err != nil {
			return nil, err
		}
		stats := map[string]interface{}{
			"feedId":      result.FeedID,
			"newArticles": result.NewCount,
			"updated":     result.UpdatedCount,
			"skipped":     result.SkippedCount,
		}
		if !result.Success {
			return stats, fmt.Errorf("refresh feed %s: %s", feedID, result.Error)
		}
		return stats, nil
	})
}

// TriggerUserRefresh refreshes all of one user's feeds now.
func (s *Scheduler) TriggerUserRefresh(ctx context.Context, userID string) models.JobResult {
	jobName := JobFeedRefresh + ":user:" + userID
	return s.executor.Run(ctx, jobName, models.TriggerManual, func(ctx context.Context) (map[string]interface{}, error) {
		stats, err := s.driver.RefreshUserFeeds(ctx, userID)
		if err != nil {
			return nil, err
		}
		return batchStatsPayload(stats), nil
	})
}

func (s *Scheduler) runRefresh(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.driver.RefreshAllDue(ctx)
	if err != nil {
		return nil, err
	}
	return batchStatsPayload(stats), nil
}

func (s *Scheduler) runCleanup(ctx context.Context) (map[string]interface{}, error) {
	result, err := s.cleanup.Cleanup(ctx, "", "")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"deleted": result.Deleted,
		"byAge":   result.ByAge,
		"byCount": result.ByCount,
	}, nil
}

func (s *Scheduler) runEmbeddings(ctx context.Context) (map[string]interface{}, error) {
	result, err := s.embeddings.ProcessArticlesWithoutEmbeddings(ctx, s.config.EmbeddingBatchSize, s.config.EmbeddingMaxBatches)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"processed":   result.Processed,
		"failed":      result.Failed,
		"totalTokens": result.TotalTokens,
		"batches":     result.BatchesProcessed,
	}, nil
}

func batchStatsPayload(stats *models.BatchStats) map[string]interface{} {
	payload := map[string]interface{}{
		"totalFeeds":           stats.TotalFeeds,
		"successful":           stats.Successful,
		"failed":               stats.Failed,
		"totalNewArticles":     stats.TotalNewArticles,
		"totalUpdatedArticles": stats.TotalUpdatedArticles,
		"averageDurationMs":    stats.AverageDurationMs,
	}
	if len(stats.Errors) > 0 {
		errs := make([]map[string]string, 0, len(stats.Errors))
		for _, e := range stats.Errors {
			errs = append(errs, map[string]string{"feedId": e.FeedID, "error": e.Error})
		}
		payload["errors"] = errs
	}
	return payload
}
