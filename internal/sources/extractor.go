package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/ratelimit"
)

// Extraction method names recorded on ExtractedContent.Method.
const (
	MethodSelector    = "selector"
	MethodReadability = "readability"
)

// Extractor pulls a full article body out of its HTML page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, opts *models.FetchOptions) (*models.ExtractedContent, error)
}

// PageExtractor is the goquery-backed Extractor used in production. When the
// feed's fetch options carry a CSS selector it is used directly; otherwise a
// readability-style pass over common article containers applies.
type PageExtractor struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	config  Config
}

func NewPageExtractor(limiter *ratelimit.Limiter, config Config) *PageExtractor {
	return &PageExtractor{
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		config:  config,
	}
}

func (e *PageExtractor) Extract(ctx context.Context, pageURL string, opts *models.FetchOptions) (*models.ExtractedContent, error) {
	if e.limiter != nil {
		e.limiter.Wait(hostOf(pageURL))
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxWithTimeout, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request %s: %w", pageURL, err)
	}
	applyFetchOptions(req, opts, e.config.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	var selector string
	if opts != nil {
		selector = opts.CSSSelector
	}
	return extractFromDocument(doc, selector)
}

func extractFromDocument(doc *goquery.Document, selector string) (*models.ExtractedContent, error) {
	extracted := &models.ExtractedContent{
		Title:       metaContent(doc, `meta[property="og:title"]`),
		Excerpt:     metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`),
		Author:      metaContent(doc, `meta[name="author"]`, `meta[property="article:author"]`),
		ImageURL:    metaContent(doc, `meta[property="og:image"]`),
		PublishedAt: metaTime(doc, `meta[property="article:published_time"]`),
	}

	if selector != "" {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			return nil, fmt.Errorf("selector %q matched nothing", selector)
		}
		extracted.Content = collapseText(sel)
		extracted.Method = MethodSelector
		return extracted, nil
	}

	// Readability-style fallback: first sufficiently large common article
	// container wins.
	for _, candidate := range []string{"article", `[role="main"]`, "main", ".post-content", ".entry-content", ".article-body", "#content"} {
		sel := doc.Find(candidate).First()
		if sel.Length() == 0 {
			continue
		}
		sel.Find("script, style, nav, aside, footer, form").Remove()
		text := collapseText(sel)
		if len(text) >= 200 {
			extracted.Content = text
			extracted.Method = MethodReadability
			return extracted, nil
		}
	}

	// Last resort: the whole body, stripped of chrome.
	body := doc.Find("body").First()
	body.Find("script, style, nav, aside, header, footer, form").Remove()
	text := collapseText(body)
	if text == "" {
		return nil, fmt.Errorf("no extractable content found")
	}
	extracted.Content = text
	extracted.Method = MethodReadability
	return extracted, nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			content = strings.TrimSpace(content)
			if content != "" {
				return content
			}
		}
	}
	return ""
}

func metaTime(doc *goquery.Document, selector string) *time.Time {
	raw := metaContent(doc, selector)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func collapseText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
