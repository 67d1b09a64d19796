package fetcher

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skipPatterns are URL substrings that mark navigation, taxonomy, and
// asset links rather than articles.
var skipPatterns = []string{
	"/tag/", "/tags/", "/category/", "/categories/",
	"/author/", "/page/", "/search", "/login", "/register",
	"/signup", "/about", "/contact", "/privacy", "/terms",
	"/feed", "/rss", ".xml", ".pdf", ".jpg", ".png", ".gif",
}

// articlePathHints mark external links that still look like articles.
// Internal links are accepted without them.
var articlePathHints = []string{
	"/article/", "/post/", "/blog/", "/news/", "/story/", "/20",
}

// extractArticleLinks pulls candidate article URLs out of a listing
// page. Links are resolved to absolute URLs, normalized, filtered
// against the skip patterns, deduplicated in first-seen order, and
// truncated to max.
func extractArticleLinks(doc *goquery.Document, base *url.URL, max int) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "data:") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		normalized := normalizeURL(resolved)
		if seen[normalized] {
			return
		}
		if !looksLikeArticle(resolved, base) {
			return
		}

		seen[normalized] = true
		links = append(links, normalized)
	})

	if max > 0 && len(links) > max {
		links = links[:max]
	}
	return links
}

// normalizeURL strips the fragment and rebuilds the URL as
// scheme://host/path plus any query string.
func normalizeURL(u *url.URL) string {
	normalized := u.Scheme + "://" + u.Host + u.Path
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized
}

// looksLikeArticle applies the skip patterns and the internal/external
// acceptance rules.
func looksLikeArticle(u *url.URL, base *url.URL) bool {
	lowerPath := strings.ToLower(u.Path)
	lowerFull := strings.ToLower(u.String())

	for _, pattern := range skipPatterns {
		if strings.Contains(lowerFull, pattern) {
			return false
		}
	}

	// Too-short paths are section roots or home pages
	if len(strings.Trim(u.Path, "/")) < 3 {
		return false
	}

	if u.Host == base.Host {
		return true
	}

	// External links only when the path itself looks article-shaped
	for _, hint := range articlePathHints {
		if strings.Contains(lowerPath, hint) {
			return true
		}
	}
	return false
}
