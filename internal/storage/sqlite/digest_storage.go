package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// DigestStorage implements interfaces.DigestStorage for SQLite
type DigestStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewDigestStorage creates a new DigestStorage instance
func NewDigestStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.DigestStorage {
	return &DigestStorage{
		db:     db,
		logger: logger,
	}
}

const digestColumns = `id, date, status, html_path, created_at, published_at, notified_at`

// CreateWithArticles inserts the digest and assigns its articles in a
// single transaction. A UNIQUE violation on date rolls everything back
// and surfaces as ErrDigestExists, which is how concurrent generation
// for the same date resolves to exactly one winner.
func (s *DigestStorage) CreateWithArticles(ctx context.Context, digest *models.Digest, articles []*models.Article) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var htmlPath sql.NullString
	if digest.HTMLPath != "" {
		htmlPath = sql.NullString{String: digest.HTMLPath, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO digests (id, date, status, html_path, created_at, published_at, notified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		digest.ID,
		digest.Date,
		digest.Status,
		htmlPath,
		digest.CreatedAt.Unix(),
		nullUnix(digest.PublishedAt),
		nullUnix(digest.NotifiedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("date %s: %w", digest.Date, interfaces.ErrDigestExists)
		}
		return fmt.Errorf("failed to insert digest: %w", err)
	}

	for _, article := range articles {
		var summary, section sql.NullString
		if article.Summary != "" {
			summary = sql.NullString{String: article.Summary, Valid: true}
		}
		if article.DigestSection != "" {
			section = sql.NullString{String: article.DigestSection, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE articles SET digest_id = ?, summary = ?, digest_section = ? WHERE id = ?
		`, digest.ID, summary, section, article.ID)
		if err != nil {
			return fmt.Errorf("failed to assign article %s: %w", article.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit digest: %w", err)
	}

	s.logger.Info().
		Str("id", digest.ID).
		Str("date", digest.Date).
		Int("articles", len(articles)).
		Msg("Digest created")

	return nil
}

// GetDigest retrieves a digest by ID
func (s *DigestStorage) GetDigest(ctx context.Context, id string) (*models.Digest, error) {
	query := fmt.Sprintf(`SELECT %s FROM digests WHERE id = ?`, digestColumns)

	digest, err := scanDigest(s.db.DB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("digest %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}

	return digest, nil
}

// GetDigestByDate retrieves a digest by its UTC date (YYYY-MM-DD)
func (s *DigestStorage) GetDigestByDate(ctx context.Context, date string) (*models.Digest, error) {
	query := fmt.Sprintf(`SELECT %s FROM digests WHERE date = ?`, digestColumns)

	digest, err := scanDigest(s.db.DB().QueryRowContext(ctx, query, date))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("digest for %s: %w", date, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest by date: %w", err)
	}

	return digest, nil
}

// ListDigests retrieves all digests, newest date first
func (s *DigestStorage) ListDigests(ctx context.Context) ([]*models.Digest, error) {
	query := fmt.Sprintf(`SELECT %s FROM digests ORDER BY date DESC`, digestColumns)

	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []*models.Digest
	for rows.Next() {
		digest, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		digests = append(digests, digest)
	}

	return digests, rows.Err()
}

// SetNotified records the time a digest notification went out
func (s *DigestStorage) SetNotified(ctx context.Context, id string, notifiedAt time.Time) error {
	result, err := s.db.DB().ExecContext(ctx, `
		UPDATE digests SET notified_at = ? WHERE id = ?
	`, notifiedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set digest notified: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("digest %s: %w", id, interfaces.ErrNotFound)
	}

	return nil
}

// isUniqueViolation detects a UNIQUE constraint failure from the
// modernc sqlite driver, which reports it in the error text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanDigest(row rowScanner) (*models.Digest, error) {
	var digest models.Digest
	var htmlPath sql.NullString
	var createdAt int64
	var publishedAt, notifiedAt sql.NullInt64

	err := row.Scan(
		&digest.ID,
		&digest.Date,
		&digest.Status,
		&htmlPath,
		&createdAt,
		&publishedAt,
		&notifiedAt,
	)
	if err != nil {
		return nil, err
	}

	digest.HTMLPath = htmlPath.String
	digest.CreatedAt = timeFromUnix(createdAt)
	digest.PublishedAt = timePtr(publishedAt)
	digest.NotifiedAt = timePtr(notifiedAt)

	return &digest, nil
}
