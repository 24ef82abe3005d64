// Package sources talks to feed origins: parsing RSS/Atom endpoints into
// candidate items and extracting article bodies from HTML pages.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/ratelimit"
)

// Config bounds outbound fetches.
type Config struct {
	Timeout   time.Duration
	MaxItems  int
	UserAgent string
}

// DefaultConfig returns the fetch limits used in production.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		MaxItems:  100,
		UserAgent: "Neureed/1.0 (+https://github.com/madpin/Neureed-sub002)",
	}
}

// Parser fetches a feed URL and normalizes its entries into candidates.
type Parser interface {
	ParseFeedURL(ctx context.Context, feedURL string, opts *models.FetchOptions) ([]models.Candidate, error)
}

// FeedParser is the gofeed-backed Parser used in production.
type FeedParser struct {
	parser  *gofeed.Parser
	client  *http.Client
	limiter *ratelimit.Limiter
	config  Config
}

func NewFeedParser(limiter *ratelimit.Limiter, config Config) *FeedParser {
	return &FeedParser{
		parser:  gofeed.NewParser(),
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		config:  config,
	}
}

// ParseFeedURL fetches and parses one feed. Network and parse errors are
// returned loudly; the caller decides what a failed fetch means for the
// feed's error counter.
func (p *FeedParser) ParseFeedURL(ctx context.Context, feedURL string, opts *models.FetchOptions) ([]models.Candidate, error) {
	if p.limiter != nil {
		p.limiter.Wait(hostOf(feedURL))
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxWithTimeout, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request %s: %w", feedURL, err)
	}
	applyFetchOptions(req, opts, p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", feedURL, resp.StatusCode)
	}

	feed, err := p.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	candidates := make([]models.Candidate, 0, len(feed.Items))
	for i, item := range feed.Items {
		if i >= p.config.MaxItems {
			break
		}
		candidates = append(candidates, candidateFromItem(item))
	}

	return candidates, nil
}

func candidateFromItem(item *gofeed.Item) models.Candidate {
	candidate := models.Candidate{
		Title:   item.Title,
		Link:    item.Link,
		GUID:    item.GUID,
		Content: item.Content,
		Excerpt: item.Description,
	}

	if candidate.Content == "" {
		candidate.Content = item.Description
	}

	if item.PublishedParsed != nil {
		candidate.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		candidate.PublishedAt = item.UpdatedParsed
	}

	if item.Author != nil {
		candidate.Author = item.Author.Name
	}
	if item.Image != nil {
		candidate.ImageURL = item.Image.URL
	}

	return candidate
}

func applyFetchOptions(req *http.Request, opts *models.FetchOptions, defaultUA string) {
	ua := defaultUA
	if opts != nil && opts.UserAgent != "" {
		ua = opts.UserAgent
	}
	req.Header.Set("User-Agent", ua)

	if opts == nil {
		return
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	if opts.Cookies != "" {
		req.Header.Set("Cookie", opts.Cookies)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
