package interfaces

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDigestExists is returned when digest creation loses the race on
// the date uniqueness constraint. Callers treat it as "already done".
var ErrDigestExists = errors.New("digest already exists for date")

// ErrArticleExists is returned when an article insert loses the race
// on the url uniqueness constraint. Callers count it as a duplicate.
var ErrArticleExists = errors.New("article already exists for url")

// CategoryStorage persists digest categories.
type CategoryStorage interface {
	SaveCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// SourceStorage persists source configurations and implements the
// claim protocol that keeps concurrent fetch workers off the same
// source.
type SourceStorage interface {
	SaveSource(ctx context.Context, source *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id string) error

	// ClaimNextDue atomically selects and claims one due, enabled,
	// unclaimed source not in the exclude set, ordered oldest fetch
	// first (never-fetched sources first). Returns nil when no source
	// is available.
	ClaimNextDue(ctx context.Context, now time.Time, exclude []string) (*models.Source, error)

	// MarkFetched records a successful fetch: sets last_fetched_at and
	// releases the claim.
	MarkFetched(ctx context.Context, id string, fetchedAt time.Time) error

	// ReleaseClaim frees a claimed source without touching
	// last_fetched_at, so a failed source becomes due again.
	ReleaseClaim(ctx context.Context, id string) error
}

// ArticleStorage persists fetched articles.
type ArticleStorage interface {
	// SaveArticle inserts a new article. Returns ErrArticleExists when
	// the url is already stored.
	SaveArticle(ctx context.Context, article *models.Article) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	URLExists(ctx context.Context, url string) (bool, error)
	// ListUnassigned returns articles not yet part of any digest,
	// newest fetched first.
	ListUnassigned(ctx context.Context) ([]*models.Article, error)
	ListByDigest(ctx context.Context, digestID string) ([]*models.Article, error)
}

// DigestStorage persists digests and their article assignments.
type DigestStorage interface {
	// CreateWithArticles inserts the digest and stamps digest_id and
	// summary on every given article in one transaction. Returns
	// ErrDigestExists when another writer already created a digest for
	// the same date.
	CreateWithArticles(ctx context.Context, digest *models.Digest, articles []*models.Article) error
	GetDigest(ctx context.Context, id string) (*models.Digest, error)
	GetDigestByDate(ctx context.Context, date string) (*models.Digest, error)
	ListDigests(ctx context.Context) ([]*models.Digest, error)
	SetNotified(ctx context.Context, id string, notifiedAt time.Time) error
}

// SettingStorage is the raw key/value layer beneath the settings
// service. Values are stored as JSON envelopes.
type SettingStorage interface {
	Get(ctx context.Context, key string) (string, error) // ErrNotFound when unset
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*models.Setting, error)
}

// JobRunStorage persists the background job ledger.
type JobRunStorage interface {
	InsertRun(ctx context.Context, run *models.JobRun) error
	FinishRun(ctx context.Context, id, status string, finishedAt time.Time, details map[string]interface{}, errorMessage string) error
	GetRun(ctx context.Context, id string) (*models.JobRun, error)
	GetLatestRun(ctx context.Context, jobName string) (*models.JobRun, error)
}

// StorageManager aggregates all storage interfaces over one database.
type StorageManager interface {
	CategoryStorage() CategoryStorage
	SourceStorage() SourceStorage
	ArticleStorage() ArticleStorage
	DigestStorage() DigestStorage
	SettingStorage() SettingStorage
	JobRunStorage() JobRunStorage
	DB() *sql.DB
	Close() error
}
