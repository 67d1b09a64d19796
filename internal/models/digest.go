package models

import "time"

// Digest workflow statuses.
const (
	DigestStatusBuilding  = "building"
	DigestStatusReady     = "ready"
	DigestStatusPublished = "published"
)

// Digest tracks one day's generated digest. Date is unique; the
// UNIQUE constraint is what makes concurrent generation safe.
type Digest struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"` // YYYY-MM-DD (UTC)
	Status      string     `json:"status"`
	HTMLPath    string     `json:"html_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
}
