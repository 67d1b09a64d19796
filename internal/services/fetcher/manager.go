package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// recencyFallback is the lookback window for sources that have never
// been fetched: on the first fetch only articles from the last day are
// considered fresh.
const recencyFallback = 24 * time.Hour

// Manager runs fetch cycles: it claims due sources, runs the extractor
// for each, and saves the candidates that survive the dedup, recency,
// and keyword filters.
type Manager struct {
	storage  interfaces.StorageManager
	registry *Registry
	logger   arbor.ILogger
}

// NewManager creates a fetch manager.
func NewManager(storage interfaces.StorageManager, registry *Registry, logger arbor.ILogger) *Manager {
	return &Manager{
		storage:  storage,
		registry: registry,
		logger:   logger,
	}
}

// FetchDueSources claims and fetches up to maxSources due sources
// using workerCount concurrent workers. Each source is claimed before
// fetching so workers never process the same source; a failed source
// has its claim released and becomes due again immediately. Sources
// attempted in this cycle are excluded from further claims whether
// they succeeded or not.
func (m *Manager) FetchDueSources(ctx context.Context, maxSources, workerCount int) (*models.FetchStats, error) {
	if workerCount < 1 {
		workerCount = 1
	}

	stats := &models.FetchStats{Errors: []string{}}
	var (
		mu        sync.Mutex
		attempted []string
		claimErr  error
	)

	// claimNext hands one claimed source to a worker, or nil when the
	// budget is spent or no due source remains.
	claimNext := func() *models.Source {
		mu.Lock()
		defer mu.Unlock()

		if claimErr != nil {
			return nil
		}
		if maxSources > 0 && stats.SourcesChecked >= maxSources {
			return nil
		}
		source, err := m.storage.SourceStorage().ClaimNextDue(ctx, time.Now().UTC(), attempted)
		if err != nil {
			claimErr = fmt.Errorf("failed to claim source: %w", err)
			return nil
		}
		if source == nil {
			return nil
		}
		attempted = append(attempted, source.ID)
		stats.SourcesChecked++
		return source
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				source := claimNext()
				if source == nil {
					return
				}

				result, err := m.safeFetch(ctx, source)

				mu.Lock()
				if err != nil {
					stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", source.Name, err))
					mu.Unlock()
					m.logger.Warn().Str("source", source.Name).Err(err).Msg("Source fetch failed")
					continue
				}
				stats.SourcesFetched++
				stats.ArticlesFound += result.Found
				stats.ArticlesNew += result.Saved
				stats.ArticlesFiltered += result.Filtered
				stats.ArticlesOld += result.Old
				mu.Unlock()

				m.logger.Info().
					Str("source", source.Name).
					Int("found", result.Found).
					Int("saved", result.Saved).
					Int("filtered", result.Filtered).
					Int("old", result.Old).
					Int("duplicate", result.Duplicate).
					Msg("Source fetched")
			}
		}()
	}
	wg.Wait()

	if claimErr != nil {
		return stats, claimErr
	}
	return stats, nil
}

// FetchSource fetches one source immediately, ignoring its interval.
// Used by the CLI for manual fetches. The source is never claimed, so
// a failure must not release a claim some worker may be holding.
func (m *Manager) FetchSource(ctx context.Context, id string) (*models.SourceFetchResult, error) {
	source, err := m.storage.SourceStorage().GetSource(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("source %s not found", id)
		}
		return nil, err
	}

	result, err := m.extractAndSave(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := m.storage.SourceStorage().MarkFetched(ctx, source.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark source fetched: %w", err)
	}
	return result, nil
}

// safeFetch isolates one source fetch: a panicking extractor becomes a
// per-source error instead of taking down the whole cycle.
func (m *Manager) safeFetch(ctx context.Context, source *models.Source) (result *models.SourceFetchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
			m.releaseClaim(ctx, source)
		}
	}()
	return m.fetchClaimed(ctx, source)
}

// fetchClaimed runs the extractor and the save pass for one claimed
// source. On success the source is marked fetched; on failure the claim
// is released so the source stays due.
func (m *Manager) fetchClaimed(ctx context.Context, source *models.Source) (*models.SourceFetchResult, error) {
	result, err := m.extractAndSave(ctx, source)
	if err != nil {
		m.releaseClaim(ctx, source)
		return nil, err
	}

	if err := m.storage.SourceStorage().MarkFetched(ctx, source.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark source fetched: %w", err)
	}
	return result, nil
}

// extractAndSave runs the extractor for a source and saves the
// surviving candidates. Claim handling belongs to the caller.
func (m *Manager) extractAndSave(ctx context.Context, source *models.Source) (*models.SourceFetchResult, error) {
	fetcher, err := m.registry.ForType(source.Type)
	if err != nil {
		return nil, err
	}

	candidates, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	return m.saveArticles(ctx, source, candidates)
}

func (m *Manager) releaseClaim(ctx context.Context, source *models.Source) {
	if err := m.storage.SourceStorage().ReleaseClaim(ctx, source.ID); err != nil {
		m.logger.Warn().Str("source", source.Name).Err(err).Msg("Failed to release claim")
	}
}

// saveArticles filters candidates and saves the survivors. Filters run
// in a fixed order so the counters stay meaningful: a duplicate is
// never also counted as old, and an old article is never also counted
// as keyword-filtered.
func (m *Manager) saveArticles(ctx context.Context, source *models.Source, candidates []*models.ExtractedArticle) (*models.SourceFetchResult, error) {
	result := &models.SourceFetchResult{Found: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	category, err := m.categoryFor(ctx, source)
	if err != nil {
		return nil, err
	}

	keywords := append([]string{}, source.Keywords...)
	digestSection := ""
	if category != nil {
		keywords = append(keywords, category.Keywords...)
		digestSection = category.DigestSection
	}
	cutoff := recencyCutoff(source, time.Now().UTC())

	for _, candidate := range candidates {
		exists, err := m.storage.ArticleStorage().URLExists(ctx, candidate.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to check url: %w", err)
		}
		if exists {
			result.Duplicate++
			continue
		}

		// Undated articles pass the recency check
		if candidate.PublishedAt != nil && candidate.PublishedAt.Before(cutoff) {
			result.Old++
			continue
		}

		if !matchesKeywords(candidate, keywords) {
			result.Filtered++
			continue
		}

		article := &models.Article{
			ID:            common.NewID(),
			SourceID:      source.ID,
			URL:           candidate.URL,
			Title:         candidate.Title,
			RawContent:    candidate.Content,
			DigestSection: digestSection,
			PublishedAt:   candidate.PublishedAt,
			FetchedAt:     time.Now().UTC(),
		}
		if err := m.storage.ArticleStorage().SaveArticle(ctx, article); err != nil {
			// Another worker inserted the same url between the
			// URLExists check and the insert
			if errors.Is(err, interfaces.ErrArticleExists) {
				result.Duplicate++
				continue
			}
			return nil, fmt.Errorf("failed to save article: %w", err)
		}
		result.Saved++
	}

	return result, nil
}

// categoryFor loads the source's category. A source without a
// category, or with a dangling reference, yields nil.
func (m *Manager) categoryFor(ctx context.Context, source *models.Source) (*models.Category, error) {
	if source.CategoryID == "" {
		return nil, nil
	}
	category, err := m.storage.CategoryStorage().GetCategory(ctx, source.CategoryID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return category, nil
}

// recencyCutoff is the oldest publication time still considered fresh:
// the source's last fetch, or a fixed lookback for first fetches.
func recencyCutoff(source *models.Source, now time.Time) time.Time {
	if source.LastFetchedAt != nil {
		return *source.LastFetchedAt
	}
	return now.Add(-recencyFallback)
}

// matchesKeywords reports whether any keyword appears in the article's
// title or content, case-insensitively. An empty keyword set admits
// everything.
func matchesKeywords(candidate *models.ExtractedArticle, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}

	haystack := strings.ToLower(candidate.Title + " " + candidate.Content)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}
