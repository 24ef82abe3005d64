package models

import "time"

// Article is one ingested item. Within a feed at most one article exists for
// a given non-empty GUID, and at most one article exists for a given
// canonical URL system-wide.
type Article struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feedId"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	GUID        string    `json:"guid,omitempty"`
	ContentHash string    `json:"contentHash"`
	Content     string    `json:"content"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	Starred     bool      `json:"starred"`
	Summary     string    `json:"summary,omitempty"`
	KeyPoints   []string  `json:"keyPoints,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether enrichment already produced a vector.
func (a *Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// UpsertResult summarizes one dedup/upsert pass over a feed's candidates.
type UpsertResult struct {
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Skipped       int      `json:"skipped"`
	NewArticles []Article `json:"-"`
}
