package models

import "time"

// Source types. Only website sources are fetchable today; twitter and
// reddit are declared so configurations can be staged ahead of support.
const (
	SourceTypeWebsite = "website"
	SourceTypeTwitter = "twitter"
	SourceTypeReddit  = "reddit"
)

// Source is a content source configuration: where to fetch from, how
// often, and which keywords to filter by.
type Source struct {
	ID                   string     `json:"id"`
	CategoryID           string     `json:"category_id"`
	Name                 string     `json:"name"`
	URL                  string     `json:"url"`
	Type                 string     `json:"type"`
	Keywords             []string   `json:"keywords"`
	Enabled              bool       `json:"enabled"`
	FetchIntervalMinutes int        `json:"fetch_interval_minutes"`
	LastFetchedAt        *time.Time `json:"last_fetched_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}
