// Package refresh runs the per-feed ingestion pipeline and the batch driver
// that fans it out over all due feeds.
package refresh

import (
	"context"
	"time"

	"github.com/madpin/Neureed-sub002/internal/dedup"
	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/settings"
	"github.com/madpin/Neureed-sub002/internal/sources"
)

// MaxErrorCount is the quarantine threshold: a feed failing this many times
// in a row is excluded from batch refreshes until its counter resets.
const MaxErrorCount = 10

// FeedStore is the feed persistence surface the pipeline needs.
type FeedStore interface {
	Get(ctx context.Context, id string) (*models.Feed, error)
	ListRefreshable(ctx context.Context, maxErrorCount int) ([]models.Feed, error)
	RecordError(ctx context.Context, id, errMsg string) error
	ClearError(ctx context.Context, id string, fetchedAt time.Time) error
}

// SubscriptionStore supplies the cascade tiers for settings resolution.
type SubscriptionStore interface {
	ListForRefresh(ctx context.Context, userID string) ([]models.SubscriptionSettings, error)
}

// Upserter reconciles fetched candidates against storage.
type Upserter interface {
	UpsertCandidates(ctx context.Context, feedID string, candidates []models.Candidate) (*models.UpsertResult, error)
}

// Cleaner prunes a feed's articles after a successful refresh.
type Cleaner interface {
	CleanupFeed(ctx context.Context, feedID string, effective models.EffectiveSettings) (*models.CleanupResult, error)
}

// Embedder embeds a specific set of articles. The pipeline hands it only the
// feed's own newly created ones; the global backfill stays a scheduler job
// with its own single-flight guard.
type Embedder interface {
	EmbedArticles(ctx context.Context, articles []models.Article) (int, error)
}

// Orchestrator runs one feed's refresh as an explicit step pipeline:
// fetch (fatal), extract and merge (per-item, non-fatal), upsert (fatal),
// embed (non-fatal), cleanup (non-fatal). A fatal step failure increments the
// feed's error counter; reaching the end clears it.
type Orchestrator struct {
	feeds          FeedStore
	subscriptions  SubscriptionStore
	parser         sources.Parser
	extractor      sources.Extractor
	upserter       Upserter
	cleaner        Cleaner
	embedder       Embedder
	logger         *logging.Logger
	autoEmbeddings bool
}

func NewOrchestrator(
	feeds FeedStore,
	subscriptions SubscriptionStore,
	parser sources.Parser,
	extractor sources.Extractor,
	upserter Upserter,
	cleaner Cleaner,
	embedder Embedder,
	logger *logging.Logger,
	autoEmbeddings bool,
) *Orchestrator {
	return &Orchestrator{
		feeds:          feeds,
		subscriptions:  subscriptions,
		parser:         parser,
		extractor:      extractor,
		upserter:       upserter,
		cleaner:        cleaner,
		embedder:       embedder,
		logger:         logger,
		autoEmbeddings: autoEmbeddings,
	}
}

// RefreshFeed runs the pipeline for one feed. userID scopes settings
// resolution; empty means any subscriber's settings (first subscription
// wins), falling back to system defaults for unsubscribed feeds. The returned
// result always describes the outcome; the error return is reserved for not
// finding the feed at all.
func (o *Orchestrator) RefreshFeed(ctx context.Context, feedID, userID string) (*models.RefreshResult, error) {
	startedAt := time.Now()

	feed, err := o.feeds.Get(ctx, feedID)
	if err != nil {
		return nil, err
	}

	effective := o.resolveEffective(ctx, feedID, userID)
	result := &models.RefreshResult{FeedID: feedID}

	// FETCH: fatal.
	candidates, err := o.parser.ParseFeedURL(ctx, feed.URL, feed.FetchOptions)
	if err != nil {
		return o.failed(ctx, result, startedAt, err), nil
	}

	// EXTRACT & MERGE: per-item, a failed extraction keeps the feed-native
	// content.
	if effective.ExtractionMethod != models.ExtractionSourceNative && o.extractor != nil {
		candidates = o.extractAll(ctx, feed, candidates, effective.MergeStrategy)
	}

	// UPSERT: fatal.
	upsert, err := o.upserter.UpsertCandidates(ctx, feedID, candidates)
	if err != nil {
		return o.failed(ctx, result, startedAt, err), nil
	}
	result.NewCount = upsert.Created
	result.UpdatedCount = upsert.Updated
	result.SkippedCount = upsert.Skipped

	// The refresh itself succeeded; everything after is best-effort.
	if err := o.feeds.ClearError(ctx, feedID, time.Now()); err != nil {
		o.logger.Warn("failed to clear feed error state",
			logging.WithField("feed_id", feedID),
			logging.WithField("error", err.Error()))
	}
	result.Success = true

	// EMBED: non-fatal, only this feed's newly created articles.
	if o.autoEmbeddings && o.embedder != nil && len(upsert.NewArticles) > 0 {
		embedded, err := o.embedder.EmbedArticles(ctx, upsert.NewArticles)
		if err != nil {
			o.logger.Warn("embedding step failed",
				logging.WithField("feed_id", feedID),
				logging.WithField("error", err.Error()))
		} else {
			result.EmbeddingsGenerated = embedded
		}
	}

	// CLEANUP: non-fatal.
	if o.cleaner != nil {
		cleanup, err := o.cleaner.CleanupFeed(ctx, feedID, effective)
		if err != nil {
			o.logger.Warn("cleanup step failed",
				logging.WithField("feed_id", feedID),
				logging.WithField("error", err.Error()))
		} else {
			result.Cleanup = cleanup
		}
	}

	result.DurationMs = time.Since(startedAt).Milliseconds()

	o.logger.Info("feed refreshed",
		logging.WithField("feed_id", feedID),
		logging.WithField("new", result.NewCount),
		logging.WithField("updated", result.UpdatedCount),
		logging.WithField("skipped", result.SkippedCount),
		logging.WithField("duration_ms", result.DurationMs))

	return result, nil
}

func (o *Orchestrator) extractAll(ctx context.Context, feed *models.Feed, candidates []models.Candidate, mergeStrategy string) []models.Candidate {
	merged := make([]models.Candidate, len(candidates))
	for i, candidate := range candidates {
		merged[i] = candidate
		if candidate.Link == "" {
			continue
		}
		extracted, err := o.extractor.Extract(ctx, candidate.Link, feed.FetchOptions)
		if err != nil {
			o.logger.Warn("extraction failed, keeping feed-native content",
				logging.WithField("feed_id", feed.ID),
				logging.WithField("url", candidate.Link),
				logging.WithField("error", err.Error()))
			continue
		}
		merged[i] = dedup.ApplyExtraction(candidate, extracted, mergeStrategy)
	}
	return merged
}

func (o *Orchestrator) failed(ctx context.Context, result *models.RefreshResult, startedAt time.Time, cause error) *models.RefreshResult {
	result.Success = false
	result.Error = cause.Error()
	result.DurationMs = time.Since(startedAt).Milliseconds()

	if err := o.feeds.RecordError(ctx, result.FeedID, cause.Error()); err != nil {
		o.logger.Error("failed to record feed error",
			logging.WithField("feed_id", result.FeedID),
			logging.WithField("error", err.Error()))
	}

	o.logger.Warn("feed refresh failed",
		logging.WithField("feed_id", result.FeedID),
		logging.WithField("error", result.Error))

	return result
}

// resolveEffective picks the settings for this refresh: the scoped user's
// subscription tiers when available, any subscriber's otherwise, system
// defaults when nobody subscribes.
func (o *Orchestrator) resolveEffective(ctx context.Context, feedID, userID string) models.EffectiveSettings {
	rows, err := o.subscriptions.ListForRefresh(ctx, userID)
	if err != nil {
		o.logger.Warn("failed to load subscription settings, using defaults",
			logging.WithField("feed_id", feedID),
			logging.WithField("error", err.Error()))
		return settings.Defaults()
	}
	for _, row := range rows {
		if row.FeedID == feedID {
			return settings.ResolveSubscription(row)
		}
	}
	return settings.Defaults()
}
