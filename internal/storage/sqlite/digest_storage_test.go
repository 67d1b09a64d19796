package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

func seedArticle(t *testing.T, m interfaces.StorageManager, sourceID, url string) *models.Article {
	t.Helper()

	article := &models.Article{
		ID:            common.NewID(),
		SourceID:      sourceID,
		URL:           url,
		Title:         "Article at " + url,
		RawContent:    "body",
		DigestSection: models.SectionSecurityNews,
		FetchedAt:     time.Now().UTC(),
	}
	require.NoError(t, m.ArticleStorage().SaveArticle(context.Background(), article))
	return article
}

func TestCreateWithArticles_AssignsDigestID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	category := seedCategory(t, m, "security_news")
	source := seedSource(t, m, category.ID, "s", 60, nil, true)
	a1 := seedArticle(t, m, source.ID, "https://example.com/1")
	a2 := seedArticle(t, m, source.ID, "https://example.com/2")
	a1.Summary = "first summary"
	a2.Summary = "second summary"

	digest := &models.Digest{
		ID:        common.NewID(),
		Date:      "2026-08-24",
		Status:    models.DigestStatusReady,
		HTMLPath:  "data/digests/digest-2026-08-24.html",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, m.DigestStorage().CreateWithArticles(ctx, digest, []*models.Article{a1, a2}))

	assigned, err := m.ArticleStorage().ListByDigest(ctx, digest.ID)
	require.NoError(t, err)
	assert.Len(t, assigned, 2)
	for _, article := range assigned {
		assert.Equal(t, digest.ID, article.DigestID)
		assert.NotEmpty(t, article.Summary)
	}

	unassigned, err := m.ArticleStorage().ListUnassigned(ctx)
	require.NoError(t, err)
	assert.Empty(t, unassigned)
}

func TestCreateWithArticles_DateConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	category := seedCategory(t, m, "security_news")
	source := seedSource(t, m, category.ID, "s", 60, nil, true)
	a1 := seedArticle(t, m, source.ID, "https://example.com/1")
	a2 := seedArticle(t, m, source.ID, "https://example.com/2")

	first := &models.Digest{
		ID:        common.NewID(),
		Date:      "2026-08-24",
		Status:    models.DigestStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.DigestStorage().CreateWithArticles(ctx, first, []*models.Article{a1}))

	second := &models.Digest{
		ID:        common.NewID(),
		Date:      "2026-08-24",
		Status:    models.DigestStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	err := m.DigestStorage().CreateWithArticles(ctx, second, []*models.Article{a2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrDigestExists))

	// The losing transaction must not have assigned its article
	got, err := m.ArticleStorage().GetArticle(ctx, a2.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DigestID)
}

func TestSetNotified(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	digest := &models.Digest{
		ID:        common.NewID(),
		Date:      "2026-08-23",
		Status:    models.DigestStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.DigestStorage().CreateWithArticles(ctx, digest, nil))

	notifiedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, m.DigestStorage().SetNotified(ctx, digest.ID, notifiedAt))

	got, err := m.DigestStorage().GetDigestByDate(ctx, "2026-08-23")
	require.NoError(t, err)
	require.NotNil(t, got.NotifiedAt)
	assert.Equal(t, notifiedAt.Unix(), got.NotifiedAt.Unix())
}

func TestURLExists(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	category := seedCategory(t, m, "market")
	source := seedSource(t, m, category.ID, "s", 60, nil, true)
	seedArticle(t, m, source.ID, "https://example.com/known")

	exists, err := m.ArticleStorage().URLExists(ctx, "https://example.com/known")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.ArticleStorage().URLExists(ctx, "https://example.com/unknown")
	require.NoError(t, err)
	assert.False(t, exists)
}
