package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/testutil"
)

func subscribed(userID, feedID string) models.SubscriptionSettings {
	return models.SubscriptionSettings{UserID: userID, FeedID: feedID}
}

func newTestDriver(feeds *mockFeedStore, subs *mockSubscriptionStore, parser *mockParser, upserter *mockUpserter) *Driver {
	o := NewOrchestrator(feeds, subs, parser, nil, upserter, nil, nil, testutil.NullLogger(), false)
	return NewDriver(o, feeds, subs, testutil.NullLogger(), 2)
}

func TestRefreshAllDue_DueSelection(t *testing.T) {
	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	neverFetched := testFeed("never")
	recentFeed := testFeed("recent")
	recentFeed.LastFetchedAt = &recent
	staleFeed := testFeed("stale")
	staleFeed.LastFetchedAt = &stale

	feeds := newMockFeedStore(neverFetched, recentFeed, staleFeed)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{
		subscribed("u1", "never"),
		subscribed("u1", "recent"),
		subscribed("u1", "stale"),
	}}
	parser := &mockParser{candidates: map[string][]models.Candidate{
		neverFetched.URL: {{Title: "A", Link: "https://example.com/a", Content: "b"}},
		staleFeed.URL:    {{Title: "B", Link: "https://example.com/b", Content: "b"}},
	}}
	upserter := &mockUpserter{}

	stats, err := newTestDriver(feeds, subs, parser, upserter).RefreshAllDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllDue() error = %v", err)
	}

	// Default interval is 60 minutes: never-fetched and stale are due,
	// the 10-minute-old one is not.
	if stats.TotalFeeds != 2 {
		t.Errorf("TotalFeeds = %d, want 2", stats.TotalFeeds)
	}
	if stats.Successful != 2 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 2 successful", stats)
	}
	if !feeds.cleared["never"] || !feeds.cleared["stale"] {
		t.Error("both due feeds should have refreshed")
	}
	if feeds.cleared["recent"] {
		t.Error("the recently fetched feed should not have refreshed")
	}
}

func TestRefreshAllDue_SubscriptionIntervalOverride(t *testing.T) {
	now := time.Now()
	fetched := now.Add(-10 * time.Minute)
	feed := testFeed("feed-1")
	feed.LastFetchedAt = &fetched

	five := 5
	feeds := newMockFeedStore(feed)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{{
		UserID:       "u1",
		FeedID:       "feed-1",
		FeedSettings: &models.SettingsOverride{RefreshIntervalMinutes: &five},
	}}}
	parser := &mockParser{candidates: map[string][]models.Candidate{}}
	upserter := &mockUpserter{}

	stats, err := newTestDriver(feeds, subs, parser, upserter).RefreshAllDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllDue() error = %v", err)
	}

	if stats.TotalFeeds != 1 {
		t.Errorf("TotalFeeds = %d, want 1 (5-minute interval makes it due)", stats.TotalFeeds)
	}
}

func TestRefreshAllDue_UnsubscribedFeedsSkipped(t *testing.T) {
	feeds := newMockFeedStore(testFeed("orphan"))
	subs := &mockSubscriptionStore{}
	parser := &mockParser{}

	stats, err := newTestDriver(feeds, subs, parser, &mockUpserter{}).RefreshAllDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllDue() error = %v", err)
	}
	if stats.TotalFeeds != 0 {
		t.Errorf("TotalFeeds = %d, want 0 for unsubscribed feeds", stats.TotalFeeds)
	}
}

func TestRefreshAllDue_QuarantineExclusion(t *testing.T) {
	healthy := testFeed("healthy")
	sick := testFeed("sick")
	sick.ErrorCount = MaxErrorCount

	feeds := newMockFeedStore(healthy, sick)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{
		subscribed("u1", "healthy"),
		subscribed("u1", "sick"),
	}}
	parser := &mockParser{candidates: map[string][]models.Candidate{}}

	stats, err := newTestDriver(feeds, subs, parser, &mockUpserter{}).RefreshAllDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllDue() error = %v", err)
	}

	if stats.TotalFeeds != 1 {
		t.Errorf("TotalFeeds = %d, want only the healthy feed", stats.TotalFeeds)
	}
	if feeds.cleared["sick"] {
		t.Error("quarantined feed must not refresh")
	}
}

func TestRefreshAllDue_BatchIsolation(t *testing.T) {
	a, b, c := testFeed("a"), testFeed("b"), testFeed("c")
	feeds := newMockFeedStore(a, b, c)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{
		subscribed("u1", "a"),
		subscribed("u1", "b"),
		subscribed("u1", "c"),
	}}
	parser := &mockParser{
		candidates: map[string][]models.Candidate{
			a.URL: {{Title: "A", Link: "https://example.com/a", Content: "x"}},
			c.URL: {{Title: "C", Link: "https://example.com/c", Content: "x"}},
		},
		errs: map[string]error{b.URL: errors.New("timeout")},
	}

	stats, err := newTestDriver(feeds, subs, parser, &mockUpserter{}).RefreshAllDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllDue() error = %v", err)
	}

	if stats.TotalFeeds != 3 || stats.Successful != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 successful and 1 failed", stats)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].FeedID != "b" {
		t.Errorf("Errors = %+v, want the failing feed identified", stats.Errors)
	}
	if stats.TotalNewArticles != 2 {
		t.Errorf("TotalNewArticles = %d, want 2", stats.TotalNewArticles)
	}
}

func TestRefreshUserFeeds_ScopedAndDeduplicated(t *testing.T) {
	shared := testFeed("shared") // never fetched, so due
	other := testFeed("other")

	feeds := newMockFeedStore(shared, other)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{
		subscribed("u1", "shared"),
		subscribed("u1", "shared"), // duplicate subscription rows collapse
		subscribed("u2", "other"),
	}}
	parser := &mockParser{candidates: map[string][]models.Candidate{}}

	stats, err := newTestDriver(feeds, subs, parser, &mockUpserter{}).RefreshUserFeeds(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RefreshUserFeeds() error = %v", err)
	}

	if stats.TotalFeeds != 1 {
		t.Errorf("TotalFeeds = %d, want only u1's feed once", stats.TotalFeeds)
	}
	if feeds.cleared["other"] {
		t.Error("another user's feed must not refresh")
	}
}

func TestRefreshUserFeeds_RespectsDueIntervals(t *testing.T) {
	now := time.Now()
	justFetched := now.Add(-time.Minute)
	feed := testFeed("feed-1")
	feed.LastFetchedAt = &justFetched

	feeds := newMockFeedStore(feed)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{
		subscribed("u1", "feed-1"),
	}}
	parser := &mockParser{candidates: map[string][]models.Candidate{}}

	// Fetched a minute ago under the default 60-minute interval: not due,
	// even for a user-scoped refresh.
	stats, err := newTestDriver(feeds, subs, parser, &mockUpserter{}).RefreshUserFeeds(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RefreshUserFeeds() error = %v", err)
	}
	if stats.TotalFeeds != 0 {
		t.Errorf("TotalFeeds = %d, want 0 for a feed inside its interval", stats.TotalFeeds)
	}
	if feeds.cleared["feed-1"] {
		t.Error("a feed inside its interval must not refresh")
	}
}

func TestRefreshUserFeeds_UsesUserIntervalOverride(t *testing.T) {
	now := time.Now()
	fetched := now.Add(-10 * time.Minute)
	feed := testFeed("feed-1")
	feed.LastFetchedAt = &fetched

	five := 5
	feeds := newMockFeedStore(feed)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{{
		UserID:       "u1",
		FeedID:       "feed-1",
		FeedSettings: &models.SettingsOverride{RefreshIntervalMinutes: &five},
	}}}
	parser := &mockParser{candidates: map[string][]models.Candidate{}}

	stats, err := newTestDriver(feeds, subs, parser, &mockUpserter{}).RefreshUserFeeds(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RefreshUserFeeds() error = %v", err)
	}
	if stats.TotalFeeds != 1 {
		t.Errorf("TotalFeeds = %d, want 1 (the user's 5-minute interval makes it due)", stats.TotalFeeds)
	}
}

func TestRefreshAllDue_EmbedsOnlyEachFeedsOwnArticles(t *testing.T) {
	a, b := testFeed("a"), testFeed("b")
	feeds := newMockFeedStore(a, b)
	subs := &mockSubscriptionStore{rows: []models.SubscriptionSettings{
		subscribed("u1", "a"),
		subscribed("u1", "b"),
	}}
	parser := &mockParser{candidates: map[string][]models.Candidate{
		a.URL: {{Title: "A", Link: "https://example.com/a", Content: "x"}},
		b.URL: {{Title: "B", Link: "https://example.com/b", Content: "x"}},
	}}
	embedder := &mockEmbedder{}

	o := NewOrchestrator(feeds, subs, parser, nil, &mockUpserter{}, nil, embedder, testutil.NullLogger(), true)
	driver := NewDriver(o, feeds, subs, testutil.NullLogger(), 2)

	stats, err := driver.RefreshAllDue(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllDue() error = %v", err)
	}
	if stats.Successful != 2 {
		t.Fatalf("stats = %+v, want 2 successful", stats)
	}

	// Two concurrent refreshes make two embed calls, each scoped to its own
	// feed's new articles; nothing pages the shared backlog.
	if embedder.calls != 2 {
		t.Fatalf("embedder calls = %d, want 2", embedder.calls)
	}
	for _, articles := range embedder.batch {
		if len(articles) != 1 {
			t.Fatalf("embed call got %d articles, want 1", len(articles))
		}
		for _, article := range articles[1:] {
			if article.FeedID != articles[0].FeedID {
				t.Errorf("embed call mixes feeds: %+v", articles)
			}
		}
	}
	seen := map[string]bool{}
	for _, articles := range embedder.batch {
		seen[articles[0].FeedID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("embedded feeds = %v, want both a and b", seen)
	}
}

func TestAggregate(t *testing.T) {
	results := []models.RefreshResult{
		{FeedID: "a", Success: true, NewCount: 3, UpdatedCount: 1, DurationMs: 100},
		{FeedID: "b", Success: false, Error: "timeout", DurationMs: 50},
		{FeedID: "c", Success: true, NewCount: 2, DurationMs: 150},
	}

	stats := Aggregate(results)

	if stats.TotalFeeds != 3 || stats.Successful != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalNewArticles != 5 || stats.TotalUpdatedArticles != 1 {
		t.Errorf("article totals = %d/%d, want 5/1", stats.TotalNewArticles, stats.TotalUpdatedArticles)
	}
	if stats.AverageDurationMs != 100 {
		t.Errorf("AverageDurationMs = %d, want 100", stats.AverageDurationMs)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].FeedID != "b" || stats.Errors[0].Error != "timeout" {
		t.Errorf("Errors = %+v", stats.Errors)
	}
}

func TestAggregate_Empty(t *testing.T) {
	stats := Aggregate(nil)
	if stats.TotalFeeds != 0 || stats.AverageDurationMs != 0 {
		t.Errorf("stats = %+v, want zero values", stats)
	}
}
