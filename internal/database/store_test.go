package database

import (
	"context"
	"testing"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/testutil"
)

// Stable user and category ids for seeding the settings tiers.
const (
	testUserAlice   = "11111111-1111-1111-1111-111111111111"
	testUserBob     = "22222222-2222-2222-2222-222222222222"
	testCategoryID  = "33333333-3333-3333-3333-333333333333"
	testMissingUUID = "00000000-0000-0000-0000-000000000000"
)

// newStoreDB connects the stores to the shared test database and starts each
// test from a clean slate. Skips when no database is reachable.
func newStoreDB(t *testing.T) (*DB, *testutil.TestDB) {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	db := &DB{DB: tdb.DB}

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		tdb.Close()
		t.Fatalf("migrate: %v", err)
	}
	tdb.Cleanup(ctx)

	t.Cleanup(func() {
		tdb.Cleanup(context.Background())
		tdb.Close()
	})

	return db, tdb
}

func mustCreateFeed(t *testing.T, store *FeedStore, url string) *models.Feed {
	t.Helper()
	feed, err := store.Create(context.Background(), url, "Test Feed", nil)
	if err != nil {
		t.Fatalf("create feed %s: %v", url, err)
	}
	return feed
}

func testArticle(feedID, url, guid string) models.Article {
	return models.Article{
		FeedID:      feedID,
		Title:       "An Article",
		URL:         url,
		GUID:        guid,
		ContentHash: "hash-" + guid + "-" + url,
		Content:     "article body",
		PublishedAt: time.Now().UTC(),
	}
}

func mustInsertArticle(t *testing.T, store *ArticleStore, a models.Article) models.Article {
	t.Helper()
	if err := store.Insert(context.Background(), &a); err != nil {
		t.Fatalf("insert article %s: %v", a.URL, err)
	}
	return a
}
