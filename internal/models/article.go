package models

import "time"

// Article is a fetched article. URL is unique across all sources; the
// dedup check in the fetch pipeline relies on that constraint.
// RelevanceScore is reserved for a future ranking pass and is never
// written by the current pipeline.
type Article struct {
	ID             string     `json:"id"`
	SourceID       string     `json:"source_id"`
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	RawContent     string     `json:"raw_content,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	DigestSection  string     `json:"digest_section,omitempty"`
	RelevanceScore *float64   `json:"relevance_score,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at"`
	DigestID       string     `json:"digest_id,omitempty"`
}

// ExtractedArticle is a candidate article produced by an extractor
// before it has passed the save filters.
type ExtractedArticle struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
