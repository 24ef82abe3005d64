package retention

import (
	"context"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/settings"
)

// FeedLister enumerates feeds for the all-feeds sweep.
type FeedLister interface {
	List(ctx context.Context) ([]models.Feed, error)
}

// SubscriptionLister supplies cascade tiers for settings resolution.
type SubscriptionLister interface {
	ListForRefresh(ctx context.Context, userID string) ([]models.SubscriptionSettings, error)
}

// Service is the cleanup entry point: one feed or a sweep over all of them,
// each under its own resolved retention settings.
type Service struct {
	engine        *Engine
	feeds         FeedLister
	subscriptions SubscriptionLister
	logger        *logging.Logger
}

func NewService(engine *Engine, feeds FeedLister, subscriptions SubscriptionLister, logger *logging.Logger) *Service {
	return &Service{
		engine:        engine,
		feeds:         feeds,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Cleanup prunes one feed when feedID is set, otherwise every feed. userID
// scopes which subscription tiers drive the settings; empty means any
// subscriber (first wins), with system defaults for unsubscribed feeds.
func (s *Service) Cleanup(ctx context.Context, feedID, userID string) (*models.CleanupResult, error) {
	rows, err := s.subscriptions.ListForRefresh(ctx, userID)
	if err != nil {
		return nil, err
	}

	if feedID != "" {
		return s.engine.CleanupFeed(ctx, feedID, effectiveFor(rows, feedID))
	}

	feeds, err := s.feeds.List(ctx)
	if err != nil {
		return nil, err
	}

	total := &models.CleanupResult{}
	for _, feed := range feeds {
		result, err := s.engine.CleanupFeed(ctx, feed.ID, effectiveFor(rows, feed.ID))
		if err != nil {
			// One feed failing must not stop the sweep.
			s.logger.Warn("feed cleanup failed",
				logging.WithField("feed_id", feed.ID),
				logging.WithField("error", err.Error()))
			continue
		}
		total.Deleted += result.Deleted
		total.ByAge += result.ByAge
		total.ByCount += result.ByCount
	}
	return total, nil
}

func effectiveFor(rows []models.SubscriptionSettings, feedID string) models.EffectiveSettings {
	for _, row := range rows {
		if row.FeedID == feedID {
			return settings.ResolveSubscription(row)
		}
	}
	return settings.Defaults()
}
