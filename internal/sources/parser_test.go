package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/ratelimit"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <guid>guid-first</guid>
      <pubDate>Mon, 02 Jan 2026 15:04:05 GMT</pubDate>
      <description>First summary</description>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/second</link>
      <guid>guid-second</guid>
      <description>Second summary</description>
    </item>
  </channel>
</rss>`

func newTestParser() *FeedParser {
	return NewFeedParser(ratelimit.New(0), DefaultConfig())
}

func TestParseFeedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	candidates, err := newTestParser().ParseFeedURL(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("ParseFeedURL() error = %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("ParseFeedURL() returned %d candidates, want 2", len(candidates))
	}
	first := candidates[0]
	if first.Title != "First Post" || first.Link != "https://example.com/first" || first.GUID != "guid-first" {
		t.Errorf("first candidate = %+v", first)
	}
	if first.PublishedAt == nil {
		t.Error("first candidate should carry a publish time")
	}
	if first.Content != "First summary" {
		t.Errorf("Content = %q, want description fallback", first.Content)
	}
	if candidates[1].PublishedAt != nil {
		t.Error("second candidate has no pubDate, PublishedAt should be nil")
	}
}

func TestParseFeedURL_MaxItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	parser := NewFeedParser(ratelimit.New(0), Config{Timeout: 5 * time.Second, MaxItems: 1, UserAgent: "Test/1.0"})
	candidates, err := parser.ParseFeedURL(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("ParseFeedURL() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("ParseFeedURL() returned %d candidates, want MaxItems cap of 1", len(candidates))
	}
}

func TestParseFeedURL_FetchOptions(t *testing.T) {
	var gotUA, gotCookie, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		gotHeader = r.Header.Get("X-Api-Key")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	opts := &models.FetchOptions{
		Headers:   map[string]string{"X-Api-Key": "secret"},
		Cookies:   "session=abc",
		UserAgent: "CustomAgent/2.0",
	}
	if _, err := newTestParser().ParseFeedURL(context.Background(), server.URL, opts); err != nil {
		t.Fatalf("ParseFeedURL() error = %v", err)
	}

	if gotUA != "CustomAgent/2.0" {
		t.Errorf("User-Agent = %q, want custom agent", gotUA)
	}
	if gotCookie != "session=abc" {
		t.Errorf("Cookie = %q, want session=abc", gotCookie)
	}
	if gotHeader != "secret" {
		t.Errorf("X-Api-Key = %q, want secret", gotHeader)
	}
}

func TestParseFeedURL_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	if _, err := newTestParser().ParseFeedURL(context.Background(), server.URL, nil); err == nil {
		t.Error("ParseFeedURL() should fail on a non-2xx status")
	}
}

func TestParseFeedURL_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	if _, err := newTestParser().ParseFeedURL(context.Background(), server.URL, nil); err == nil {
		t.Error("ParseFeedURL() should fail on malformed feed content")
	}
}
