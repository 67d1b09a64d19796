package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// CategoryStorage implements interfaces.CategoryStorage for SQLite
type CategoryStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewCategoryStorage creates a new CategoryStorage instance
func NewCategoryStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CategoryStorage {
	return &CategoryStorage{
		db:     db,
		logger: logger,
	}
}

// SaveCategory creates or updates a category
func (s *CategoryStorage) SaveCategory(ctx context.Context, category *models.Category) error {
	keywordsJSON, err := json.Marshal(category.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO categories (id, name, digest_section, keywords, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			digest_section = excluded.digest_section,
			keywords = excluded.keywords
	`

	_, err = s.db.DB().ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.DigestSection,
		string(keywordsJSON),
		category.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}

	s.logger.Info().
		Str("id", category.ID).
		Str("name", category.Name).
		Str("section", category.DigestSection).
		Msg("Category saved")

	return nil
}

// GetCategory retrieves a category by ID
func (s *CategoryStorage) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	query := `
		SELECT id, name, digest_section, keywords, created_at
		FROM categories
		WHERE id = ?
	`

	category, err := scanCategory(s.db.DB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return category, nil
}

// ListCategories retrieves all categories ordered by name
func (s *CategoryStorage) ListCategories(ctx context.Context) ([]*models.Category, error) {
	query := `
		SELECT id, name, digest_section, keywords, created_at
		FROM categories
		ORDER BY name
	`

	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// DeleteCategory deletes a category by ID
func (s *CategoryStorage) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.db.DB().ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %s: %w", id, interfaces.ErrNotFound)
	}

	s.logger.Info().Str("id", id).Msg("Category deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var category models.Category
	var keywordsJSON string
	var createdAt int64

	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.DigestSection,
		&keywordsJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(keywordsJSON), &category.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	category.CreatedAt = timeFromUnix(createdAt)

	return &category, nil
}
