package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// staleClaimAfter is how long a claim may be held before other workers
// treat it as abandoned (worker crashed mid-fetch).
const staleClaimAfter = 10 * time.Minute

// SourceStorage implements interfaces.SourceStorage for SQLite
type SourceStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

const sourceColumns = `id, category_id, name, url, type, keywords, enabled, fetch_interval_minutes, last_fetched_at, created_at`

// SaveSource creates or updates a source configuration
func (s *SourceStorage) SaveSource(ctx context.Context, source *models.Source) error {
	keywordsJSON, err := json.Marshal(source.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO sources (id, category_id, name, url, type, keywords, enabled, fetch_interval_minutes, last_fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_id = excluded.category_id,
			name = excluded.name,
			url = excluded.url,
			type = excluded.type,
			keywords = excluded.keywords,
			enabled = excluded.enabled,
			fetch_interval_minutes = excluded.fetch_interval_minutes
	`

	_, err = s.db.DB().ExecContext(ctx, query,
		source.ID,
		source.CategoryID,
		source.Name,
		source.URL,
		source.Type,
		string(keywordsJSON),
		boolToInt(source.Enabled),
		source.FetchIntervalMinutes,
		nullUnix(source.LastFetchedAt),
		source.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	s.logger.Info().
		Str("id", source.ID).
		Str("name", source.Name).
		Str("type", source.Type).
		Msg("Source saved")

	return nil
}

// GetSource retrieves a source by ID
func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources WHERE id = ?`, sourceColumns)

	source, err := scanSource(s.db.DB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

// ListSources retrieves all sources ordered by created_at DESC
func (s *SourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources ORDER BY created_at DESC`, sourceColumns)

	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}

	return sources, rows.Err()
}

// DeleteSource deletes a source by ID
func (s *SourceStorage) DeleteSource(ctx context.Context, id string) error {
	result, err := s.db.DB().ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %s: %w", id, interfaces.ErrNotFound)
	}

	s.logger.Info().Str("id", id).Msg("Source deleted")
	return nil
}

// ClaimNextDue selects one due source and claims it with a
// compare-and-set on claimed_at. The CAS makes the claim safe across
// concurrent workers without row locks: the UPDATE only succeeds for
// the worker that observes claimed_at as free, everyone else moves on
// to the next candidate.
func (s *SourceStorage) ClaimNextDue(ctx context.Context, now time.Time, exclude []string) (*models.Source, error) {
	nowUnix := now.Unix()
	staleBefore := nowUnix - int64(staleClaimAfter.Seconds())

	query := fmt.Sprintf(`
		SELECT %s FROM sources
		WHERE enabled = 1
			AND (last_fetched_at IS NULL OR last_fetched_at <= ? - fetch_interval_minutes * 60)
			AND (claimed_at IS NULL OR claimed_at <= ?)
	`, sourceColumns)

	args := []interface{}{nowUnix, staleBefore}
	if len(exclude) > 0 {
		placeholders := strings.Repeat("?,", len(exclude))
		query += fmt.Sprintf(" AND id NOT IN (%s)", placeholders[:len(placeholders)-1])
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	// Never-fetched sources first, then the longest-waiting ones
	query += ` ORDER BY last_fetched_at IS NOT NULL, last_fetched_at ASC LIMIT 10`

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due sources: %w", err)
	}

	var candidates []*models.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		candidates = append(candidates, source)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due sources: %w", err)
	}

	for _, candidate := range candidates {
		result, err := s.db.DB().ExecContext(ctx, `
			UPDATE sources SET claimed_at = ?
			WHERE id = ? AND (claimed_at IS NULL OR claimed_at <= ?)
		`, nowUnix, candidate.ID, staleBefore)
		if err != nil {
			return nil, fmt.Errorf("failed to claim source: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 1 {
			s.logger.Debug().
				Str("id", candidate.ID).
				Str("name", candidate.Name).
				Msg("Source claimed")
			return candidate, nil
		}
		// Lost the race for this one, try the next candidate
	}

	return nil, nil
}

// MarkFetched records a successful fetch and releases the claim
func (s *SourceStorage) MarkFetched(ctx context.Context, id string, fetchedAt time.Time) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE sources SET last_fetched_at = ?, claimed_at = NULL WHERE id = ?
	`, fetchedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark source fetched: %w", err)
	}
	return nil
}

// ReleaseClaim frees a claimed source after a failed fetch
func (s *SourceStorage) ReleaseClaim(ctx context.Context, id string) error {
	_, err := s.db.DB().ExecContext(ctx, `
		UPDATE sources SET claimed_at = NULL WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release source claim: %w", err)
	}
	return nil
}

func scanSource(row rowScanner) (*models.Source, error) {
	var source models.Source
	var keywordsJSON string
	var enabled int
	var lastFetchedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&source.ID,
		&source.CategoryID,
		&source.Name,
		&source.URL,
		&source.Type,
		&keywordsJSON,
		&enabled,
		&source.FetchIntervalMinutes,
		&lastFetchedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	source.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(keywordsJSON), &source.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	source.LastFetchedAt = timePtr(lastFetchedAt)
	source.CreatedAt = timeFromUnix(createdAt)

	return &source, nil
}
