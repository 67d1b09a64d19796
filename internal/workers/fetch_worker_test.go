package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/fetcher"
	"github.com/ternarybob/vigil/internal/services/jobruns"
	"github.com/ternarybob/vigil/internal/services/settings"
	"github.com/ternarybob/vigil/internal/storage/sqlite"
)

type cannedFetcher struct {
	articles []*models.ExtractedArticle
	panics   bool
}

func (f *cannedFetcher) Type() string { return models.SourceTypeWebsite }

func (f *cannedFetcher) Fetch(_ context.Context, _ *models.Source) ([]*models.ExtractedArticle, error) {
	if f.panics {
		panic("extractor blew up")
	}
	return f.articles, nil
}

func newWorker(t *testing.T, f interfaces.Fetcher) (*FetchWorker, interfaces.StorageManager, *jobruns.Service) {
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

	manager := fetcher.NewManager(storage, fetcher.NewRegistry(f), common.GetLogger())
	jobRunService := jobruns.NewService(storage.JobRunStorage(), common.GetLogger())
	settingsService := settings.NewService(storage.SettingStorage(), common.GetLogger())

	worker := NewFetchWorker(manager, jobRunService, settingsService, common.WorkerConfig{
		IntervalSeconds: 300,
		JitterSeconds:   60,
		MaxSources:      10,
	}, common.GetLogger())

	return worker, storage, jobRunService
}

func seedSource(t *testing.T, storage interfaces.StorageManager) *models.Source {
	t.Helper()

	category := &models.Category{
		ID:            common.NewID(),
		Name:          "Worker Category " + common.NewID(),
		DigestSection: models.SectionSecurityNews,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, storage.CategoryStorage().SaveCategory(context.Background(), category))

	source := &models.Source{
		ID:                   common.NewID(),
		CategoryID:           category.ID,
		Name:                 "Worker Source",
		URL:                  "https://example.com/" + common.NewID(),
		Type:                 models.SourceTypeWebsite,
		Enabled:              true,
		FetchIntervalMinutes: 60,
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, storage.SourceStorage().SaveSource(context.Background(), source))
	return source
}

func TestRunCycle_RecordsStats(t *testing.T) {
	fresh := time.Now().UTC()
	worker, storage, jobRunService := newWorker(t, &cannedFetcher{
		articles: []*models.ExtractedArticle{
			{URL: "https://example.com/articles/one", Title: "One", Content: "body", PublishedAt: &fresh},
		},
	})
	seedSource(t, storage)

	ctx := context.Background()
	require.NoError(t, worker.RunCycle(ctx))

	run, err := jobRunService.GetLatest(ctx, fetchJobName)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunStatusSuccess, run.Status)
	assert.EqualValues(t, 1, run.Details["sources_checked"])
	assert.EqualValues(t, 1, run.Details["articles_new"])
	require.NotNil(t, run.FinishedAt)
}

func TestRunCycle_SurvivesPanickingExtractor(t *testing.T) {
	worker, storage, jobRunService := newWorker(t, &cannedFetcher{panics: true})
	seedSource(t, storage)

	ctx := context.Background()
	require.NoError(t, worker.RunCycle(ctx))

	run, err := jobRunService.GetLatest(ctx, fetchJobName)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunStatusSuccess, run.Status)

	errors, ok := run.Details["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0].(string), "panicked")
}

func TestCycleDelay_WithinJitterBounds(t *testing.T) {
	worker, _, _ := newWorker(t, &cannedFetcher{})

	for i := 0; i < 50; i++ {
		delay := worker.cycleDelay()
		assert.GreaterOrEqual(t, delay, 300*time.Second)
		assert.LessOrEqual(t, delay, 360*time.Second)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	worker, _, _ := newWorker(t, &cannedFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
