package models

import "time"

// Digest section identifiers. Every category maps to exactly one section
// of the generated digest.
const (
	SectionSecurityNews = "security_news"
	SectionProductNews  = "product_news"
	SectionMarket       = "market"
	SectionResearch     = "research"
)

// ValidDigestSections lists the sections a category may map to, in
// canonical order.
var ValidDigestSections = []string{
	SectionSecurityNews,
	SectionProductNews,
	SectionMarket,
	SectionResearch,
}

// Category groups sources and decides which digest section their
// articles land in. Category keywords apply to every source in the
// category, in addition to the source's own keywords.
type Category struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DigestSection string    `json:"digest_section"`
	Keywords      []string  `json:"keywords"`
	CreatedAt     time.Time `json:"created_at"`
}
