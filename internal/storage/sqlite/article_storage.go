package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// ArticleStorage implements interfaces.ArticleStorage for SQLite
type ArticleStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewArticleStorage creates a new ArticleStorage instance
func NewArticleStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		db:     db,
		logger: logger,
	}
}

const articleColumns = `id, source_id, url, title, raw_content, summary, digest_section, relevance_score, published_at, fetched_at, digest_id`

// SaveArticle inserts a new article
func (s *ArticleStorage) SaveArticle(ctx context.Context, article *models.Article) error {
	query := `
		INSERT INTO articles (id, source_id, url, title, raw_content, summary, digest_section, relevance_score, published_at, fetched_at, digest_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var rawContent, summary, digestSection, digestID sql.NullString
	if article.RawContent != "" {
		rawContent = sql.NullString{String: article.RawContent, Valid: true}
	}
	if article.Summary != "" {
		summary = sql.NullString{String: article.Summary, Valid: true}
	}
	if article.DigestSection != "" {
		digestSection = sql.NullString{String: article.DigestSection, Valid: true}
	}
	if article.DigestID != "" {
		digestID = sql.NullString{String: article.DigestID, Valid: true}
	}

	var relevance sql.NullFloat64
	if article.RelevanceScore != nil {
		relevance = sql.NullFloat64{Float64: *article.RelevanceScore, Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, query,
		article.ID,
		article.SourceID,
		article.URL,
		article.Title,
		rawContent,
		summary,
		digestSection,
		relevance,
		nullUnix(article.PublishedAt),
		article.FetchedAt.Unix(),
		digestID,
	)
	if err != nil {
		// Concurrent workers can both pass the URLExists check; the
		// unique index is the arbiter
		if isUniqueViolation(err) {
			return fmt.Errorf("url %s: %w", article.URL, interfaces.ErrArticleExists)
		}
		return fmt.Errorf("failed to save article: %w", err)
	}

	s.logger.Debug().
		Str("id", article.ID).
		Str("url", article.URL).
		Msg("Article saved")

	return nil
}

// GetArticle retrieves an article by ID
func (s *ArticleStorage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = ?`, articleColumns)

	article, err := scanArticle(s.db.DB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("article %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// URLExists checks whether an article with the URL is already stored
func (s *ArticleStorage) URLExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.DB().QueryRowContext(ctx, `SELECT 1 FROM articles WHERE url = ?`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article url: %w", err)
	}
	return true, nil
}

// ListUnassigned returns articles without a digest, newest fetched first
func (s *ArticleStorage) ListUnassigned(ctx context.Context) ([]*models.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE digest_id IS NULL ORDER BY fetched_at DESC`, articleColumns)
	return s.queryArticles(ctx, query)
}

// ListByDigest returns the articles assigned to a digest
func (s *ArticleStorage) ListByDigest(ctx context.Context, digestID string) ([]*models.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE digest_id = ? ORDER BY fetched_at DESC`, articleColumns)
	return s.queryArticles(ctx, query, digestID)
}

func (s *ArticleStorage) queryArticles(ctx context.Context, query string, args ...interface{}) ([]*models.Article, error) {
	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	return articles, rows.Err()
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var rawContent, summary, digestSection, digestID sql.NullString
	var relevance sql.NullFloat64
	var publishedAt sql.NullInt64
	var fetchedAt int64

	err := row.Scan(
		&article.ID,
		&article.SourceID,
		&article.URL,
		&article.Title,
		&rawContent,
		&summary,
		&digestSection,
		&relevance,
		&publishedAt,
		&fetchedAt,
		&digestID,
	)
	if err != nil {
		return nil, err
	}

	article.RawContent = rawContent.String
	article.Summary = summary.String
	article.DigestSection = digestSection.String
	article.DigestID = digestID.String
	if relevance.Valid {
		article.RelevanceScore = &relevance.Float64
	}
	article.PublishedAt = timePtr(publishedAt)
	article.FetchedAt = timeFromUnix(fetchedAt)

	return &article, nil
}
