package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultMaxLinks     = 20
	articleFetchWorkers = 5
)

// noiseSelectors remove navigation chrome before content extraction.
var noiseSelectors = buildNoiseSelectors()

func buildNoiseSelectors() string {
	selectors := []string{"nav", "header", "footer", "aside", "script", "style", "noscript"}
	for _, marker := range []string{"nav", "menu", "footer", "sidebar", "header", "comment", "social", "share", "widget"} {
		selectors = append(selectors,
			fmt.Sprintf("[class*=%q]", marker),
			fmt.Sprintf("[id*=%q]", marker),
		)
	}
	return strings.Join(selectors, ", ")
}

// WebsiteFetcher extracts articles from listing pages of regular
// websites. The listing is fetched over HTTP with retries; if the site
// blocks the client (403/429), the page is re-fetched with the
// headless browser.
type WebsiteFetcher struct {
	client    *httpclient.Client
	browser   *Browser
	converter *md.Converter
	maxLinks  int
	logger    arbor.ILogger
}

// NewWebsiteFetcher creates a website fetcher.
func NewWebsiteFetcher(client *httpclient.Client, browser *Browser, logger arbor.ILogger) *WebsiteFetcher {
	converter := md.NewConverter("", true, nil)
	return &WebsiteFetcher{
		client:    client,
		browser:   browser,
		converter: converter,
		maxLinks:  defaultMaxLinks,
		logger:    logger,
	}
}

// Type returns the source type this fetcher handles.
func (f *WebsiteFetcher) Type() string {
	return models.SourceTypeWebsite
}

// Fetch discovers article links on the source's listing page and
// extracts each article in parallel.
func (f *WebsiteFetcher) Fetch(ctx context.Context, source *models.Source) ([]*models.ExtractedArticle, error) {
	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", source.URL, err)
	}

	html, err := f.fetchPage(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing html: %w", err)
	}

	doc.Find(noiseSelectors).Remove()
	links := extractArticleLinks(doc, base, f.maxLinks)

	f.logger.Debug().
		Str("source", source.Name).
		Int("links", len(links)).
		Msg("Article links discovered")

	if len(links) == 0 {
		return nil, nil
	}

	// Fetch articles in parallel, bounded by a semaphore
	results := make([]*models.ExtractedArticle, len(links))
	sem := make(chan struct{}, articleFetchWorkers)
	var wg sync.WaitGroup

	for i, link := range links {
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			article, err := f.extractArticle(ctx, link)
			if err != nil {
				f.logger.Debug().Str("url", link).Err(err).Msg("Skipping article")
				return
			}
			results[i] = article
		}(i, link)
	}
	wg.Wait()

	var articles []*models.ExtractedArticle
	for _, article := range results {
		if article != nil {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

// fetchPage fetches a URL, falling back to the headless browser when
// the plain client is blocked.
func (f *WebsiteFetcher) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := f.client.Get(ctx, pageURL)
	if err == nil {
		return body, nil
	}

	var statusErr *httpclient.StatusError
	if f.browser != nil && errors.As(err, &statusErr) &&
		(statusErr.StatusCode == http.StatusForbidden || statusErr.StatusCode == http.StatusTooManyRequests) {
		f.logger.Info().
			Str("url", pageURL).
			Int("status", statusErr.StatusCode).
			Msg("HTTP fetch blocked, retrying with browser")
		html, renderErr := f.browser.Render(ctx, pageURL)
		if renderErr != nil {
			return nil, renderErr
		}
		return []byte(html), nil
	}

	return nil, err
}

// extractArticle fetches one article page and pulls out title, body
// content, and the published timestamp.
func (f *WebsiteFetcher) extractArticle(ctx context.Context, articleURL string) (*models.ExtractedArticle, error) {
	body, err := f.fetchPage(ctx, articleURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article html: %w", err)
	}

	publishedAt := extractPublishedAt(doc)
	title := extractTitle(doc, articleURL)

	doc.Find(noiseSelectors).Remove()
	content := f.extractContent(doc)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("no extractable content")
	}

	return &models.ExtractedArticle{
		URL:         articleURL,
		Title:       title,
		Content:     content,
		PublishedAt: publishedAt,
	}, nil
}

// extractContent converts the main content region to markdown. The
// first matching content container wins; body is the last resort.
func (f *WebsiteFetcher) extractContent(doc *goquery.Document) string {
	for _, selector := range []string{"article", "main", "[role=main]", "body"} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		markdown := f.converter.Convert(sel)
		if strings.TrimSpace(markdown) != "" {
			return strings.TrimSpace(markdown)
		}
	}
	return ""
}

// extractTitle resolves the article title: page metadata first, then
// the document title, then the first heading, then the URL itself.
func extractTitle(doc *goquery.Document, articleURL string) string {
	metaSelectors := []struct {
		selector string
		attr     string
	}{
		{`meta[property="og:title"]`, "content"},
		{`meta[name="twitter:title"]`, "content"},
		{`meta[name="title"]`, "content"},
	}
	for _, m := range metaSelectors {
		if value, ok := doc.Find(m.selector).First().Attr(m.attr); ok {
			if title := strings.TrimSpace(value); title != "" {
				return title
			}
		}
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	return articleURL
}

// extractPublishedAt reads the publication timestamp from page
// metadata. Unparseable or missing dates yield nil; undated articles
// are still saved.
func extractPublishedAt(doc *goquery.Document) *time.Time {
	candidates := []string{}

	metaSelectors := []struct {
		selector string
		attr     string
	}{
		{`meta[property="article:published_time"]`, "content"},
		{`meta[name="date"]`, "content"},
		{`meta[itemprop="datePublished"]`, "content"},
	}
	for _, m := range metaSelectors {
		if value, ok := doc.Find(m.selector).First().Attr(m.attr); ok {
			candidates = append(candidates, strings.TrimSpace(value))
		}
	}
	if value, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, strings.TrimSpace(value))
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
	}
	return nil
}

var _ interfaces.Fetcher = (*WebsiteFetcher)(nil)
