package embeddings

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/testutil"
)

// fakeBackend returns a fixed vector per text and constant usage per call.
type fakeBackend struct {
	provider string
	model    string
	calls    int
	err      error
}

func (f *fakeBackend) Provider() string { return f.provider }
func (f *fakeBackend) Model() string    { return f.model }

func (f *fakeBackend) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, Usage, error) {
	f.calls++
	if f.err != nil {
		return nil, Usage{}, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, Usage{PromptTokens: 100 * len(texts), TotalTokens: 100 * len(texts)}, nil
}

func (f *fakeBackend) GenerateEmbedding(ctx context.Context, text string) ([]float32, Usage, error) {
	vectors, usage, err := f.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, Usage{}, err
	}
	return vectors[0], usage, nil
}

// mockArticleStore holds a backlog of articles missing embeddings.
type mockArticleStore struct {
	backlog  []models.Article
	stored   map[string][]float32
	storeErr map[string]error
}

func newMockArticleStore(n int) *mockArticleStore {
	store := &mockArticleStore{stored: make(map[string][]float32), storeErr: make(map[string]error)}
	for i := 0; i < n; i++ {
		store.backlog = append(store.backlog, models.Article{
			ID:      fmt.Sprintf("a-%d", i),
			Title:   fmt.Sprintf("Article %d", i),
			Content: "body",
		})
	}
	return store
}

func (m *mockArticleStore) ListWithoutEmbeddings(ctx context.Context, limit int) ([]models.Article, error) {
	var page []models.Article
	for _, a := range m.backlog {
		if _, done := m.stored[a.ID]; done {
			continue
		}
		page = append(page, a)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (m *mockArticleStore) SetEmbedding(ctx context.Context, articleID string, embedding []float32) error {
	if err := m.storeErr[articleID]; err != nil {
		return err
	}
	m.stored[articleID] = embedding
	return nil
}

type mockLedger struct {
	entries []*models.CostLedgerEntry
}

func (m *mockLedger) Append(ctx context.Context, entry *models.CostLedgerEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func newTestService(backend Backend, store ArticleStore, ledger Ledger) *Service {
	return NewService(backend, store, ledger, testutil.NullLogger(), 0)
}

func TestProcessArticlesWithoutEmbeddings_DrainsBacklog(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(25)
	ledger := &mockLedger{}

	result, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 10)
	if err != nil {
		t.Fatalf("ProcessArticlesWithoutEmbeddings() error = %v", err)
	}

	if result.Processed != 25 {
		t.Errorf("Processed = %d, want 25", result.Processed)
	}
	// 10 + 10 + 5: the short third page stops the run.
	if result.BatchesProcessed != 3 || backend.calls != 3 {
		t.Errorf("batches = %d, backend calls = %d, want 3/3", result.BatchesProcessed, backend.calls)
	}
	if len(store.stored) != 25 {
		t.Errorf("stored = %d embeddings, want 25", len(store.stored))
	}
	if len(ledger.entries) != 3 {
		t.Errorf("ledger entries = %d, want one per backend call", len(ledger.entries))
	}
}

func TestProcessArticlesWithoutEmbeddings_MaxBatchesCap(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(100)
	ledger := &mockLedger{}

	result, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 2)
	if err != nil {
		t.Fatalf("ProcessArticlesWithoutEmbeddings() error = %v", err)
	}

	if result.Processed != 20 || result.BatchesProcessed != 2 {
		t.Errorf("result = %+v, want exactly 2 batches of 10", result)
	}
}

func TestProcessArticlesWithoutEmbeddings_EmptyBacklog(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(0)
	ledger := &mockLedger{}

	result, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 10)
	if err != nil {
		t.Fatalf("ProcessArticlesWithoutEmbeddings() error = %v", err)
	}

	if result.Processed != 0 || result.BatchesProcessed != 0 || backend.calls != 0 {
		t.Errorf("result = %+v with %d calls, want nothing done", result, backend.calls)
	}
}

func TestProcessArticlesWithoutEmbeddings_LedgerPricing(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(5)
	ledger := &mockLedger{}

	if _, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 10); err != nil {
		t.Fatalf("ProcessArticlesWithoutEmbeddings() error = %v", err)
	}

	if len(ledger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.Provider != "openai" || entry.Model != "text-embedding-3-small" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.TotalTokens != 500 {
		t.Errorf("TotalTokens = %d, want 500", entry.TotalTokens)
	}
	want := CostUSD("openai", "text-embedding-3-small", 500)
	if entry.CostUSD != want {
		t.Errorf("CostUSD = %v, want %v", entry.CostUSD, want)
	}
	if want == 0 {
		t.Error("openai small model should have a non-zero rate")
	}
}

func TestProcessArticlesWithoutEmbeddings_SelfHostedIsFree(t *testing.T) {
	backend := &fakeBackend{provider: SelfHostedProvider, model: "nomic-embed-text"}
	store := newMockArticleStore(3)
	ledger := &mockLedger{}

	if _, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 10); err != nil {
		t.Fatalf("ProcessArticlesWithoutEmbeddings() error = %v", err)
	}

	if len(ledger.entries) != 1 || ledger.entries[0].CostUSD != 0 {
		t.Errorf("ledger = %+v, want one zero-cost entry", ledger.entries)
	}
}

func TestProcessArticlesWithoutEmbeddings_StoreFailureCounted(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(3)
	store.storeErr["a-1"] = errors.New("disk full")
	ledger := &mockLedger{}

	result, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 10)
	if err != nil {
		t.Fatalf("ProcessArticlesWithoutEmbeddings() error = %v", err)
	}

	if result.Processed != 2 || result.Failed != 1 {
		t.Errorf("result = %+v, want 2 processed, 1 failed", result)
	}
}

func TestProcessArticlesWithoutEmbeddings_BackendError(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small", err: errors.New("rate limited")}
	store := newMockArticleStore(3)
	ledger := &mockLedger{}

	if _, err := newTestService(backend, store, ledger).ProcessArticlesWithoutEmbeddings(context.Background(), 10, 10); err == nil {
		t.Error("backend error should fail the run")
	}
	if len(ledger.entries) != 0 {
		t.Errorf("ledger = %+v, failed calls should not be priced", ledger.entries)
	}
}

func TestEmbedArticles_StoresVectorsAndPricesOneCall(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(0)
	ledger := &mockLedger{}

	articles := []models.Article{
		{ID: "n-1", FeedID: "feed-1", Title: "First", Content: "body"},
		{ID: "n-2", FeedID: "feed-1", Title: "Second", Content: "body"},
	}
	stored, err := newTestService(backend, store, ledger).EmbedArticles(context.Background(), articles)
	if err != nil {
		t.Fatalf("EmbedArticles() error: %v", err)
	}
	if stored != 2 {
		t.Errorf("stored = %d, want 2", stored)
	}
	if len(store.stored["n-1"]) == 0 || len(store.stored["n-2"]) == 0 {
		t.Errorf("vectors not stored: %+v", store.stored)
	}
	if backend.calls != 1 || len(ledger.entries) != 1 {
		t.Errorf("backend calls = %d, ledger entries = %d, want one priced call", backend.calls, len(ledger.entries))
	}
}

func TestEmbedArticles_Empty(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	ledger := &mockLedger{}

	stored, err := newTestService(backend, newMockArticleStore(0), ledger).EmbedArticles(context.Background(), nil)
	if err != nil || stored != 0 {
		t.Errorf("EmbedArticles(nil) = %d, %v, want 0, nil", stored, err)
	}
	if backend.calls != 0 {
		t.Error("empty input must not reach the backend")
	}
}

func TestEmbedArticles_StoreFailureSkipsArticle(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small"}
	store := newMockArticleStore(0)
	store.storeErr["n-1"] = errors.New("gone")
	ledger := &mockLedger{}

	articles := []models.Article{
		{ID: "n-1", FeedID: "feed-1", Title: "First", Content: "body"},
		{ID: "n-2", FeedID: "feed-1", Title: "Second", Content: "body"},
	}
	stored, err := newTestService(backend, store, ledger).EmbedArticles(context.Background(), articles)
	if err != nil {
		t.Fatalf("EmbedArticles() error: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1 (failed store skipped, not fatal)", stored)
	}
}

func TestEmbedArticles_BackendError(t *testing.T) {
	backend := &fakeBackend{provider: "openai", model: "text-embedding-3-small", err: errors.New("rate limited")}
	ledger := &mockLedger{}

	if _, err := newTestService(backend, newMockArticleStore(0), ledger).EmbedArticles(context.Background(), []models.Article{{ID: "n-1"}}); err == nil {
		t.Error("backend error should surface")
	}
	if len(ledger.entries) != 0 {
		t.Errorf("ledger = %+v, failed calls should not be priced", ledger.entries)
	}
}
