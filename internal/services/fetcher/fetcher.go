package fetcher

import (
	"fmt"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// Registry maps source types to their extractors. Unknown or
// unimplemented types surface as per-source errors in the fetch stats
// rather than aborting the cycle.
type Registry struct {
	fetchers map[string]interfaces.Fetcher
}

// NewRegistry creates a registry over the given fetchers.
func NewRegistry(fetchers ...interfaces.Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]interfaces.Fetcher)}
	for _, f := range fetchers {
		r.fetchers[f.Type()] = f
	}
	return r
}

// ForType returns the fetcher for a source type.
func (r *Registry) ForType(sourceType string) (interfaces.Fetcher, error) {
	if f, ok := r.fetchers[sourceType]; ok {
		return f, nil
	}
	switch sourceType {
	case models.SourceTypeTwitter, models.SourceTypeReddit:
		return nil, fmt.Errorf("source type %s not implemented", sourceType)
	default:
		return nil, fmt.Errorf("unknown source type %s", sourceType)
	}
}
