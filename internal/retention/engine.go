// Package retention prunes old and excess articles per-feed according to
// resolved settings.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
)

// ArticleStore is the persistence surface the engine needs.
type ArticleStore interface {
	ListOlderThan(ctx context.Context, feedID string, cutoff time.Time, preserveStarred bool) ([]string, error)
	ListExcess(ctx context.Context, feedID string, maxArticles int, preserveStarred bool) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
}

// Engine applies the age and count rules to a feed's articles. Deletion
// candidates from both rules form one union, so an article matched by both
// counts once. Running twice in a row deletes nothing the second time.
type Engine struct {
	store  ArticleStore
	logger *logging.Logger
}

func NewEngine(store ArticleStore, logger *logging.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// CleanupFeed prunes one feed under the given effective settings.
func (e *Engine) CleanupFeed(ctx context.Context, feedID string, effective models.EffectiveSettings) (*models.CleanupResult, error) {
	result := &models.CleanupResult{}

	byAge := make(map[string]bool)
	if effective.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -effective.MaxAgeDays)
		ids, err := e.store.ListOlderThan(ctx, feedID, cutoff, effective.PreserveStarred)
		if err != nil {
			return nil, fmt.Errorf("list aged articles for feed %s: %w", feedID, err)
		}
		for _, id := range ids {
			byAge[id] = true
		}
	}

	byCount := make(map[string]bool)
	if effective.MaxArticlesPerFeed > 0 {
		ids, err := e.store.ListExcess(ctx, feedID, effective.MaxArticlesPerFeed, effective.PreserveStarred)
		if err != nil {
			return nil, fmt.Errorf("list excess articles for feed %s: %w", feedID, err)
		}
		for _, id := range ids {
			byCount[id] = true
		}
	}

	union := make([]string, 0, len(byAge)+len(byCount))
	for id := range byAge {
		union = append(union, id)
	}
	for id := range byCount {
		if !byAge[id] {
			union = append(union, id)
		}
	}

	if len(union) == 0 {
		return result, nil
	}

	deleted, err := e.store.DeleteByIDs(ctx, union)
	if err != nil {
		return nil, fmt.Errorf("delete articles for feed %s: %w", feedID, err)
	}

	result.Deleted = deleted
	result.ByAge = len(byAge)
	result.ByCount = len(byCount)

	e.logger.Info("feed cleanup done",
		logging.WithField("feed_id", feedID),
		logging.WithField("deleted", result.Deleted),
		logging.WithField("by_age", result.ByAge),
		logging.WithField("by_count", result.ByCount))

	return result, nil
}
