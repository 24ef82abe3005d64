package retention

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/settings"
	"github.com/madpin/Neureed-sub002/internal/testutil"
)

// storedArticle is the minimal shape the mock needs to apply both rules.
type storedArticle struct {
	id          string
	publishedAt time.Time
	starred     bool
}

// mockStore applies the age and count rules over an in-memory slice the same
// way the SQL store does.
type mockStore struct {
	articles []storedArticle
	deletes  [][]string
}

func (m *mockStore) ListOlderThan(ctx context.Context, feedID string, cutoff time.Time, preserveStarred bool) ([]string, error) {
	var ids []string
	for _, a := range m.articles {
		if preserveStarred && a.starred {
			continue
		}
		if a.publishedAt.Before(cutoff) {
			ids = append(ids, a.id)
		}
	}
	return ids, nil
}

func (m *mockStore) ListExcess(ctx context.Context, feedID string, maxArticles int, preserveStarred bool) ([]string, error) {
	kept := make([]storedArticle, 0, len(m.articles))
	for _, a := range m.articles {
		if preserveStarred && a.starred {
			continue
		}
		kept = append(kept, a)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].publishedAt.After(kept[j].publishedAt) })
	if len(kept) <= maxArticles {
		return nil, nil
	}
	var ids []string
	for _, a := range kept[maxArticles:] {
		ids = append(ids, a.id)
	}
	return ids, nil
}

func (m *mockStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	m.deletes = append(m.deletes, ids)
	remaining := m.articles[:0]
	deleted := 0
	for _, a := range m.articles {
		if contains(ids, a.id) {
			deleted++
			continue
		}
		remaining = append(remaining, a)
	}
	m.articles = remaining
	return deleted, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func seedArticles(n int, start time.Time) []storedArticle {
	articles := make([]storedArticle, n)
	for i := range articles {
		articles[i] = storedArticle{
			id:          fmt.Sprintf("a-%d", i),
			publishedAt: start.Add(time.Duration(i) * time.Hour),
		}
	}
	return articles
}

func newTestEngine(store *mockStore) *Engine {
	return NewEngine(store, testutil.NullLogger())
}

func TestCleanupFeed_CountRule(t *testing.T) {
	// 520 recent articles against a 500 cap: exactly the 20 oldest go.
	store := &mockStore{articles: seedArticles(520, time.Now().Add(-30*24*time.Hour))}
	engine := newTestEngine(store)

	effective := settings.Defaults()
	result, err := engine.CleanupFeed(context.Background(), "feed-1", effective)
	if err != nil {
		t.Fatalf("CleanupFeed() error = %v", err)
	}

	if result.Deleted != 20 {
		t.Errorf("Deleted = %d, want 20", result.Deleted)
	}
	if result.ByCount != 20 || result.ByAge != 0 {
		t.Errorf("result = %+v, want count-rule only", result)
	}
	if len(store.articles) != 500 {
		t.Errorf("remaining = %d, want 500", len(store.articles))
	}
	// The oldest 20 are a-0..a-19.
	for _, a := range store.articles {
		if contains(store.deletes[0], a.id) {
			t.Fatalf("article %s both kept and deleted", a.id)
		}
	}
}

func TestCleanupFeed_AgeRule(t *testing.T) {
	now := time.Now()
	store := &mockStore{articles: []storedArticle{
		{id: "old", publishedAt: now.Add(-100 * 24 * time.Hour)},
		{id: "fresh", publishedAt: now.Add(-1 * 24 * time.Hour)},
	}}
	engine := newTestEngine(store)

	result, err := engine.CleanupFeed(context.Background(), "feed-1", settings.Defaults())
	if err != nil {
		t.Fatalf("CleanupFeed() error = %v", err)
	}

	if result.Deleted != 1 || result.ByAge != 1 {
		t.Errorf("result = %+v, want the aged article deleted", result)
	}
	if len(store.articles) != 1 || store.articles[0].id != "fresh" {
		t.Errorf("remaining = %+v, want only fresh", store.articles)
	}
}

func TestCleanupFeed_UnionDoesNotDoubleCount(t *testing.T) {
	now := time.Now()
	// Two aged articles that are also beyond a cap of 1: the union deletes
	// them once each.
	store := &mockStore{articles: []storedArticle{
		{id: "keep", publishedAt: now},
		{id: "both-1", publishedAt: now.Add(-100 * 24 * time.Hour)},
		{id: "both-2", publishedAt: now.Add(-101 * 24 * time.Hour)},
	}}
	engine := newTestEngine(store)

	effective := settings.Defaults()
	effective.MaxArticlesPerFeed = 1
	result, err := engine.CleanupFeed(context.Background(), "feed-1", effective)
	if err != nil {
		t.Fatalf("CleanupFeed() error = %v", err)
	}

	if result.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2 (union, no double count)", result.Deleted)
	}
	if result.ByAge != 2 || result.ByCount != 2 {
		t.Errorf("result = %+v, want both rules reporting 2", result)
	}
}

func TestCleanupFeed_PreservesStarred(t *testing.T) {
	now := time.Now()
	store := &mockStore{articles: []storedArticle{
		{id: "starred-old", publishedAt: now.Add(-200 * 24 * time.Hour), starred: true},
		{id: "plain-old", publishedAt: now.Add(-200 * 24 * time.Hour)},
	}}
	engine := newTestEngine(store)

	result, err := engine.CleanupFeed(context.Background(), "feed-1", settings.Defaults())
	if err != nil {
		t.Fatalf("CleanupFeed() error = %v", err)
	}

	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if len(store.articles) != 1 || store.articles[0].id != "starred-old" {
		t.Errorf("remaining = %+v, want starred survivor", store.articles)
	}
}

func TestCleanupFeed_Idempotent(t *testing.T) {
	store := &mockStore{articles: seedArticles(520, time.Now().Add(-30*24*time.Hour))}
	engine := newTestEngine(store)

	if _, err := engine.CleanupFeed(context.Background(), "feed-1", settings.Defaults()); err != nil {
		t.Fatalf("first CleanupFeed() error = %v", err)
	}
	second, err := engine.CleanupFeed(context.Background(), "feed-1", settings.Defaults())
	if err != nil {
		t.Fatalf("second CleanupFeed() error = %v", err)
	}

	if second.Deleted != 0 {
		t.Errorf("second run Deleted = %d, want 0", second.Deleted)
	}
}

func TestCleanupFeed_DisabledRules(t *testing.T) {
	store := &mockStore{articles: seedArticles(10, time.Now().Add(-400*24*time.Hour))}
	engine := newTestEngine(store)

	effective := models.EffectiveSettings{MaxAgeDays: 0, MaxArticlesPerFeed: 0, PreserveStarred: true}
	result, err := engine.CleanupFeed(context.Background(), "feed-1", effective)
	if err != nil {
		t.Fatalf("CleanupFeed() error = %v", err)
	}

	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 when both rules are off", result.Deleted)
	}
}
