// Package dedup reconciles fetched candidate items against stored articles:
// identity resolution, change detection, content merge, and an opt-in
// near-duplicate check.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/madpin/Neureed-sub002/internal/database"
	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
)

// publishedChangedAfter is the timestamp slack below which a shifted publish
// time does not count as a content change.
const publishedChangedAfter = 60 * time.Second

// ArticleStore is the persistence surface the engine needs.
type ArticleStore interface {
	FindByGUID(ctx context.Context, feedID, guid string) (*models.Article, error)
	FindByURL(ctx context.Context, url string) (*models.Article, error)
	FindByContentHash(ctx context.Context, feedID, hash string) (*models.Article, error)
	Insert(ctx context.Context, a *models.Article) error
	Update(ctx context.Context, a *models.Article) error
}

// Tagger infers topics for newly created articles.
type Tagger interface {
	InferTopics(title, content string) []string
}

// Engine decides, per candidate, whether it is new, an update, or unchanged.
type Engine struct {
	store  ArticleStore
	tagger Tagger
	logger *logging.Logger
}

func NewEngine(store ArticleStore, tagger Tagger, logger *logging.Logger) *Engine {
	return &Engine{
		store:  store,
		tagger: tagger,
		logger: logger,
	}
}

// UpsertCandidates runs identity resolution over all candidates of one feed
// and inserts or updates accordingly. A candidate that matches a stored
// article is updated only when its hash, title, or publish time actually
// changed; otherwise it is skipped.
func (e *Engine) UpsertCandidates(ctx context.Context, feedID string, candidates []models.Candidate) (*models.UpsertResult, error) {
	result := &models.UpsertResult{}

	for _, candidate := range candidates {
		hash := ContentHash(candidate.Content)

		existing, err := e.resolve(ctx, feedID, candidate, hash)
		if err != nil {
			return nil, fmt.Errorf("resolve candidate %q: %w", candidate.Link, err)
		}

		if existing == nil {
			article := e.newArticle(feedID, candidate, hash)
			if err := e.store.Insert(ctx, article); err != nil {
				return nil, fmt.Errorf("insert candidate %q: %w", candidate.Link, err)
			}
			result.Created++
			result.NewArticles = append(result.NewArticles, *article)
			continue
		}

		if !changed(existing, candidate, hash) {
			result.Skipped++
			continue
		}

		applyCandidate(existing, candidate, hash)
		if err := e.store.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update article %s: %w", existing.ID, err)
		}
		result.Updated++
	}

	return result, nil
}

// resolve finds the stored article a candidate corresponds to, in fixed
// order: (feed, guid), canonical URL system-wide, then (feed, content hash).
// First hit wins.
func (e *Engine) resolve(ctx context.Context, feedID string, candidate models.Candidate, hash string) (*models.Article, error) {
	if candidate.GUID != "" {
		article, err := e.store.FindByGUID(ctx, feedID, candidate.GUID)
		if err == nil {
			return article, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	if candidate.Link != "" {
		article, err := e.store.FindByURL(ctx, candidate.Link)
		if err == nil {
			return article, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	if candidate.GUID == "" {
		article, err := e.store.FindByContentHash(ctx, feedID, hash)
		if err == nil {
			return article, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

func (e *Engine) newArticle(feedID string, candidate models.Candidate, hash string) *models.Article {
	article := &models.Article{
		FeedID:      feedID,
		Title:       candidate.Title,
		URL:         candidate.Link,
		GUID:        candidate.GUID,
		ContentHash: hash,
		Content:     candidate.Content,
		Excerpt:     candidate.Excerpt,
		Author:      candidate.Author,
		ImageURL:    candidate.ImageURL,
		PublishedAt: publishedOrNow(candidate),
	}

	if e.tagger != nil {
		article.Topics = e.tagger.InferTopics(article.Title, article.Content)
	}

	return article
}

// changed reports whether a candidate differs from its stored article in
// content hash, title, or publish time (beyond the 60s slack).
func changed(existing *models.Article, candidate models.Candidate, hash string) bool {
	if existing.ContentHash != hash {
		return true
	}
	if existing.Title != candidate.Title {
		return true
	}
	if candidate.PublishedAt != nil {
		delta := candidate.PublishedAt.Sub(existing.PublishedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > publishedChangedAfter {
			return true
		}
	}
	return false
}

func applyCandidate(existing *models.Article, candidate models.Candidate, hash string) {
	existing.Title = candidate.Title
	existing.ContentHash = hash
	existing.Content = candidate.Content
	existing.Excerpt = candidate.Excerpt
	existing.Author = candidate.Author
	existing.ImageURL = candidate.ImageURL
	if candidate.PublishedAt != nil {
		existing.PublishedAt = *candidate.PublishedAt
	}
}

func publishedOrNow(candidate models.Candidate) time.Time {
	if candidate.PublishedAt != nil {
		return *candidate.PublishedAt
	}
	return time.Now()
}
