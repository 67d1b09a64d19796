package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/models"
)

func newTestWebsiteFetcher() *WebsiteFetcher {
	client := httpclient.New(
		httpclient.WithTimeout(5*time.Second),
		httpclient.WithRetries(0, 0),
	)
	return NewWebsiteFetcher(client, nil, common.GetLogger())
}

func TestWebsiteFetcher_ExtractsArticles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<nav><a href="/about">About</a></nav>
			<a href="/news/patch-tuesday-roundup">Patch Tuesday</a>
			<a href="/tag/updates">Updates tag</a>
		</body></html>`)
	})
	mux.HandleFunc("/news/patch-tuesday-roundup", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<title>Fallback Title</title>
			<meta property="og:title" content="Patch Tuesday Roundup">
			<meta property="article:published_time" content="2026-08-20T10:00:00Z">
		</head><body>
			<div class="sidebar">Related links</div>
			<article><h1>Patch Tuesday Roundup</h1><p>Twelve fixes shipped this month.</p></article>
		</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newTestWebsiteFetcher()
	source := &models.Source{
		Name: "Test Site",
		URL:  server.URL + "/",
		Type: models.SourceTypeWebsite,
	}

	articles, err := f.Fetch(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	article := articles[0]
	assert.Equal(t, server.URL+"/news/patch-tuesday-roundup", article.URL)
	assert.Equal(t, "Patch Tuesday Roundup", article.Title)
	assert.Contains(t, article.Content, "Twelve fixes shipped this month")
	assert.NotContains(t, article.Content, "Related links")
	require.NotNil(t, article.PublishedAt)
	assert.Equal(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), article.PublishedAt.UTC())
}

func TestWebsiteFetcher_TitleFallsBackToHeading(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/news/untitled-story">Story</a></body></html>`)
	})
	mux.HandleFunc("/news/untitled-story", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article><h1>Heading Only</h1><p>Body text here.</p></article></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newTestWebsiteFetcher()
	articles, err := f.Fetch(context.Background(), &models.Source{
		Name: "Test Site",
		URL:  server.URL + "/",
		Type: models.SourceTypeWebsite,
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Heading Only", articles[0].Title)
	assert.Nil(t, articles[0].PublishedAt)
}

func TestWebsiteFetcher_SkipsEmptyArticles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/news/good-story">Good</a>
			<a href="/news/empty-story">Empty</a>
		</body></html>`)
	})
	mux.HandleFunc("/news/good-story", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article><p>Real content.</p></article></body></html>`)
	})
	mux.HandleFunc("/news/empty-story", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><nav>only navigation</nav></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newTestWebsiteFetcher()
	articles, err := f.Fetch(context.Background(), &models.Source{
		Name: "Test Site",
		URL:  server.URL + "/",
		Type: models.SourceTypeWebsite,
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Contains(t, articles[0].Content, "Real content")
}

func TestWebsiteFetcher_BlockedWithoutBrowserFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestWebsiteFetcher()
	_, err := f.Fetch(context.Background(), &models.Source{
		Name: "Blocked Site",
		URL:  server.URL + "/",
		Type: models.SourceTypeWebsite,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch listing")
}
