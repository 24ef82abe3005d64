package models

import "time"

// Feed is a source endpoint owned by the system. Many users may subscribe to
// one feed; per-user settings live on the subscription, not here.
type Feed struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Title         string        `json:"title"`
	LastFetchedAt *time.Time    `json:"lastFetchedAt,omitempty"`
	ErrorCount    int           `json:"errorCount"`
	LastError     string        `json:"lastError,omitempty"`
	FetchOptions  *FetchOptions `json:"fetchOptions,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// FetchOptions is the feed's free-form fetch settings blob: how to talk to
// the origin and how to pull article bodies out of its pages.
type FetchOptions struct {
	Headers     map[string]string `json:"headers,omitempty"`
	Cookies     string            `json:"cookies,omitempty"`
	CSSSelector string            `json:"cssSelector,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
}

// Candidate is a raw entry returned by feed parsing, not yet reconciled
// against storage.
type Candidate struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	GUID        string     `json:"guid,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Author      string     `json:"author,omitempty"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
}

// ExtractedContent is the result of pulling an article body out of its HTML
// page, as opposed to the feed-native content.
type ExtractedContent struct {
	Title       string     `json:"title,omitempty"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Method      string     `json:"method"`
}
