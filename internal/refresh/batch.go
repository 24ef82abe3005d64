package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/settings"
)

// DefaultWorkers bounds concurrent feed refreshes in a batch.
const DefaultWorkers = 5

// Driver fans the pipeline out over many feeds: due selection, quarantine
// exclusion, bounded concurrency in sequential sub-batches, and aggregation.
type Driver struct {
	orchestrator  *Orchestrator
	feeds         FeedStore
	subscriptions SubscriptionStore
	logger        *logging.Logger
	workers       int
}

func NewDriver(orchestrator *Orchestrator, feeds FeedStore, subscriptions SubscriptionStore, logger *logging.Logger, workers int) *Driver {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Driver{
		orchestrator:  orchestrator,
		feeds:         feeds,
		subscriptions: subscriptions,
		logger:        logger,
		workers:       workers,
	}
}

// RefreshAllDue refreshes every subscribed, non-quarantined feed whose
// refresh interval has elapsed (or that was never fetched). One feed failing
// never stops its siblings.
func (d *Driver) RefreshAllDue(ctx context.Context) (*models.BatchStats, error) {
	feeds, err := d.feeds.ListRefreshable(ctx, MaxErrorCount)
	if err != nil {
		return nil, err
	}
	rows, err := d.subscriptions.ListForRefresh(ctx, "")
	if err != nil {
		return nil, err
	}

	intervals := intervalsByFeed(rows)
	now := time.Now()

	var due []string
	for _, feed := range feeds {
		interval, subscribed := intervals[feed.ID]
		if !subscribed {
			continue
		}
		if isDue(feed, interval, now) {
			due = append(due, feed.ID)
		}
	}

	// Correlation id for this batch's per-feed log lines.
	batchID := uuid.NewString()
	d.logger.Info("batch refresh starting",
		logging.WithField("batch_id", batchID),
		logging.WithField("refreshable", len(feeds)),
		logging.WithField("due", len(due)))

	results := d.refreshFeeds(ctx, due, "")
	stats := Aggregate(results)

	d.logger.Info("batch refresh complete",
		logging.WithField("batch_id", batchID),
		logging.WithField("successful", stats.Successful),
		logging.WithField("failed", stats.Failed),
		logging.WithField("new_articles", stats.TotalNewArticles))
	return &stats, nil
}

// RefreshUserFeeds refreshes one user's subscribed feeds that are due under
// the user's own cascade-resolved intervals. Quarantined feeds stay excluded.
func (d *Driver) RefreshUserFeeds(ctx context.Context, userID string) (*models.BatchStats, error) {
	feeds, err := d.feeds.ListRefreshable(ctx, MaxErrorCount)
	if err != nil {
		return nil, err
	}
	rows, err := d.subscriptions.ListForRefresh(ctx, userID)
	if err != nil {
		return nil, err
	}

	refreshable := make(map[string]models.Feed, len(feeds))
	for _, feed := range feeds {
		refreshable[feed.ID] = feed
	}

	intervals := intervalsByFeed(rows)
	now := time.Now()

	seen := make(map[string]bool)
	var due []string
	for _, row := range rows {
		if seen[row.FeedID] {
			continue
		}
		seen[row.FeedID] = true
		feed, ok := refreshable[row.FeedID]
		if !ok {
			continue
		}
		if isDue(feed, intervals[row.FeedID], now) {
			due = append(due, row.FeedID)
		}
	}

	batchID := uuid.NewString()
	d.logger.Info("user refresh starting",
		logging.WithField("batch_id", batchID),
		logging.WithField("user_id", userID),
		logging.WithField("due", len(due)))

	results := d.refreshFeeds(ctx, due, userID)
	stats := Aggregate(results)

	d.logger.Info("user refresh complete",
		logging.WithField("batch_id", batchID),
		logging.WithField("successful", stats.Successful),
		logging.WithField("failed", stats.Failed))
	return &stats, nil
}

// refreshFeeds runs the pipeline over the ids with at most d.workers in
// flight: a sub-batch of `workers` feeds runs concurrently and fully drains
// before the next begins.
func (d *Driver) refreshFeeds(ctx context.Context, ids []string, userID string) []models.RefreshResult {
	results := make([]models.RefreshResult, 0, len(ids))

	for start := 0; start < len(ids); start += d.workers {
		end := start + d.workers
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		batchResults := make([]models.RefreshResult, len(batch))
		var wg sync.WaitGroup
		for i, feedID := range batch {
			wg.Add(1)
			go func(i int, feedID string) {
				defer wg.Done()
				result, err := d.orchestrator.RefreshFeed(ctx, feedID, userID)
				if err != nil {
					batchResults[i] = models.RefreshResult{FeedID: feedID, Error: err.Error()}
					return
				}
				batchResults[i] = *result
			}(i, feedID)
		}
		wg.Wait()

		results = append(results, batchResults...)
	}

	return results
}

// Aggregate reduces per-feed results into batch statistics. Pure: same
// results, same stats.
func Aggregate(results []models.RefreshResult) models.BatchStats {
	stats := models.BatchStats{TotalFeeds: len(results)}

	var totalDuration int64
	for _, result := range results {
		totalDuration += result.DurationMs
		if result.Success {
			stats.Successful++
			stats.TotalNewArticles += result.NewCount
			stats.TotalUpdatedArticles += result.UpdatedCount
			continue
		}
		stats.Failed++
		stats.Errors = append(stats.Errors, models.BatchError{FeedID: result.FeedID, Error: result.Error})
	}

	if len(results) > 0 {
		stats.AverageDurationMs = totalDuration / int64(len(results))
	}
	return stats
}

// intervalsByFeed resolves each subscribed feed's refresh interval. Several
// subscribers to one feed collapse to the shortest interval so the most
// eager subscriber sets the pace.
func intervalsByFeed(rows []models.SubscriptionSettings) map[string]time.Duration {
	intervals := make(map[string]time.Duration)
	for _, row := range rows {
		effective := settings.ResolveSubscription(row)
		interval := time.Duration(effective.RefreshIntervalMinutes) * time.Minute
		if existing, ok := intervals[row.FeedID]; !ok || interval < existing {
			intervals[row.FeedID] = interval
		}
	}
	return intervals
}

// isDue reports whether a feed needs refreshing: never fetched, or its
// interval has fully elapsed.
func isDue(feed models.Feed, interval time.Duration, now time.Time) bool {
	if feed.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*feed.LastFetchedAt) >= interval
}
