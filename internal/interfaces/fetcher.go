package interfaces

import (
	"context"

	"github.com/ternarybob/vigil/internal/models"
)

// Fetcher extracts candidate articles from one source. Implementations
// exist per source type; unsupported types return an error from Fetch.
type Fetcher interface {
	// Fetch returns candidate articles discovered at the source URL.
	// Candidates have not yet passed the dedup/recency/keyword filters.
	Fetch(ctx context.Context, source *models.Source) ([]*models.ExtractedArticle, error)

	// Type returns the source type this fetcher handles.
	Type() string
}
