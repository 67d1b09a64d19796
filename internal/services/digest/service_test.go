package digest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/settings"
	"github.com/ternarybob/vigil/internal/services/summarizer"
	"github.com/ternarybob/vigil/internal/storage/sqlite"
)

// stubSummarizer returns a fixed summary without any provider.
type stubSummarizer struct {
	summary string
}

func (s *stubSummarizer) Summarize(_ context.Context, article *models.Article) summarizer.Result {
	if s.summary == "" {
		return summarizer.Result{Summary: article.Title, Fallback: true}
	}
	return summarizer.Result{Summary: s.summary, Provider: "stub", Model: "stub-model"}
}

// recordingNotifier records notification calls.
type recordingNotifier struct {
	configured bool
	succeed    bool
	calls      int
	lastCount  int
}

func (n *recordingNotifier) Configured() bool { return n.configured }

func (n *recordingNotifier) NotifyDigest(_ context.Context, _ *models.Digest, articleCount int) bool {
	n.calls++
	n.lastCount = articleCount
	return n.succeed
}

type fixture struct {
	storage   interfaces.StorageManager
	settings  *settings.Service
	service   *Service
	notifier  *recordingNotifier
	outputDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config := &common.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		CacheSize:   2000,
		BusyTimeout: 5000,
		WALMode:     true,
	}
	storage, err := sqlite.NewManager(common.GetLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	settingsService := settings.NewService(storage.SettingStorage(), common.GetLogger())
	notifier := &recordingNotifier{configured: true, succeed: true}
	outputDir := filepath.Join(t.TempDir(), "digests")

	service := NewService(storage, settingsService, &stubSummarizer{summary: "Stub summary."}, notifier, outputDir, common.GetLogger())
	return &fixture{
		storage:   storage,
		settings:  settingsService,
		service:   service,
		notifier:  notifier,
		outputDir: outputDir,
	}
}

func (f *fixture) seedCategory(t *testing.T, section string) *models.Category {
	t.Helper()
	category := &models.Category{
		ID:            common.NewID(),
		Name:          "Category " + section,
		DigestSection: section,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.storage.CategoryStorage().SaveCategory(context.Background(), category))
	return category
}

func (f *fixture) seedSource(t *testing.T, categoryID string) *models.Source {
	t.Helper()
	source := &models.Source{
		ID:                   common.NewID(),
		CategoryID:           categoryID,
		Name:                 "Source " + categoryID,
		URL:                  "https://example.com/" + common.NewID(),
		Type:                 models.SourceTypeWebsite,
		Enabled:              true,
		FetchIntervalMinutes: 60,
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, f.storage.SourceStorage().SaveSource(context.Background(), source))
	return source
}

func (f *fixture) seedArticle(t *testing.T, sourceID, section, title, content string) *models.Article {
	t.Helper()
	article := &models.Article{
		ID:            common.NewID(),
		SourceID:      sourceID,
		URL:           "https://example.com/articles/" + common.NewID(),
		Title:         title,
		RawContent:    content,
		DigestSection: section,
		FetchedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.storage.ArticleStorage().SaveArticle(context.Background(), article))
	return article
}

func TestGenerate_BuildsDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	securityCategory := f.seedCategory(t, models.SectionSecurityNews)
	productCategory := f.seedCategory(t, models.SectionProductNews)
	securitySource := f.seedSource(t, securityCategory.ID)
	productSource := f.seedSource(t, productCategory.ID)

	f.seedArticle(t, securitySource.ID, models.SectionSecurityNews, "Botnet Disrupted", "Law enforcement disrupted a botnet.")
	f.seedArticle(t, productSource.ID, models.SectionProductNews, "Scanner 2.0 Released", "The scanner got a major release.")

	digest, err := f.service.Generate(ctx, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", digest.Date)
	assert.Equal(t, models.DigestStatusReady, digest.Status)

	html, err := os.ReadFile(digest.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "August 24, 2026")
	assert.Contains(t, string(html), "Botnet Disrupted")
	assert.Contains(t, string(html), "Scanner 2.0 Released")
	assert.Contains(t, string(html), "Stub summary.")
	assert.Contains(t, string(html), "Security News")
	assert.Contains(t, string(html), "Product News")

	// All selected articles were assigned
	unassigned, err := f.storage.ArticleStorage().ListUnassigned(ctx)
	require.NoError(t, err)
	assert.Empty(t, unassigned)

	assigned, err := f.storage.ArticleStorage().ListByDigest(ctx, digest.ID)
	require.NoError(t, err)
	assert.Len(t, assigned, 2)

	// Notification went out and was recorded
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, 2, f.notifier.lastCount)
	stored, err := f.storage.DigestStorage().GetDigest(ctx, digest.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.NotifiedAt)
}

func TestGenerate_IdempotentPerDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category := f.seedCategory(t, models.SectionSecurityNews)
	source := f.seedSource(t, category.ID)
	f.seedArticle(t, source.ID, models.SectionSecurityNews, "First Story", "content")

	first, err := f.service.Generate(ctx, "2026-08-24")
	require.NoError(t, err)

	f.seedArticle(t, source.ID, models.SectionSecurityNews, "Second Story", "content")
	existing, err := f.service.Generate(ctx, "2026-08-24")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrDigestExists))
	require.NotNil(t, existing)
	assert.Equal(t, first.ID, existing.ID)
}

func TestGenerate_NoArticles(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Generate(context.Background(), "2026-08-24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no unprocessed articles")
}

func TestGenerate_NoArticlesInEnabledSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// research is not in the default section list
	category := f.seedCategory(t, models.SectionResearch)
	source := f.seedSource(t, category.ID)
	f.seedArticle(t, source.ID, models.SectionResearch, "Paper Released", "content")

	_, err := f.service.Generate(ctx, "2026-08-24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no unprocessed articles match enabled sections")
	assert.Contains(t, err.Error(), models.SectionSecurityNews)

	// The research article is still unassigned
	unassigned, err := f.storage.ArticleStorage().ListUnassigned(ctx)
	require.NoError(t, err)
	assert.Len(t, unassigned, 1)
}

func TestGenerate_ExcludedSectionStaysUnassigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	securityCategory := f.seedCategory(t, models.SectionSecurityNews)
	researchCategory := f.seedCategory(t, models.SectionResearch)
	securitySource := f.seedSource(t, securityCategory.ID)
	researchSource := f.seedSource(t, researchCategory.ID)

	f.seedArticle(t, securitySource.ID, models.SectionSecurityNews, "Included Story", "content")
	excluded := f.seedArticle(t, researchSource.ID, models.SectionResearch, "Excluded Paper", "content")

	digest, err := f.service.Generate(ctx, "2026-08-24")
	require.NoError(t, err)

	unassigned, err := f.storage.ArticleStorage().ListUnassigned(ctx)
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, excluded.ID, unassigned[0].ID)

	html, err := os.ReadFile(digest.HTMLPath)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "Excluded Paper")
}

func TestGenerate_SkipsNotificationWhenDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.settings.Set(ctx, settings.KeyTelegramNotifications, false))

	category := f.seedCategory(t, models.SectionSecurityNews)
	source := f.seedSource(t, category.ID)
	f.seedArticle(t, source.ID, models.SectionSecurityNews, "Quiet Story", "content")

	digest, err := f.service.Generate(ctx, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, 0, f.notifier.calls)

	stored, err := f.storage.DigestStorage().GetDigest(ctx, digest.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.NotifiedAt)
}

func TestGenerate_ArticleWithoutContentStaysUnsummarized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category := f.seedCategory(t, models.SectionSecurityNews)
	source := f.seedSource(t, category.ID)
	f.seedArticle(t, source.ID, models.SectionSecurityNews, "Title Only Story", "")

	digest, err := f.service.Generate(ctx, "2026-08-24")
	require.NoError(t, err)

	assigned, err := f.storage.ArticleStorage().ListByDigest(ctx, digest.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Empty(t, assigned[0].Summary)

	html, err := os.ReadFile(digest.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Title Only Story")
}

func TestGenerate_RejectsMalformedDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Generate(context.Background(), "24-08-2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}
