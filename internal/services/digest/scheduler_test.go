package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/jobruns"
)

func TestNextRunUTC(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		clock string
		want  time.Time
	}{
		{
			name:  "before target fires today",
			now:   time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC),
			clock: "08:00",
			want:  time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "after target fires tomorrow",
			now:   time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
			clock: "08:00",
			want:  time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly at target fires tomorrow",
			now:   time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC),
			clock: "08:00",
			want:  time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "midnight target near end of day",
			now:   time.Date(2026, 8, 24, 23, 30, 0, 0, time.UTC),
			clock: "00:00",
			want:  time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRunUTC(tt.now, tt.clock)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextRunUTC_InvalidClock(t *testing.T) {
	_, err := NextRunUTC(time.Now(), "8am")
	assert.Error(t, err)
}

func newScheduler(t *testing.T, f *fixture) (*Scheduler, *jobruns.Service) {
	t.Helper()
	jobRunService := jobruns.NewService(f.storage.JobRunStorage(), common.GetLogger())
	return NewScheduler(f.service, f.settings, jobRunService, common.GetLogger()), jobRunService
}

func TestRunOnce_RecordsSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category := f.seedCategory(t, models.SectionSecurityNews)
	source := f.seedSource(t, category.ID)
	f.seedArticle(t, source.ID, models.SectionSecurityNews, "Scheduled Story", "content")

	scheduler, jobRunService := newScheduler(t, f)
	require.NoError(t, scheduler.RunOnce(ctx))

	run, err := jobRunService.GetLatest(ctx, jobName)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunStatusSuccess, run.Status)
	assert.NotEmpty(t, run.Details["digest_id"])
	assert.Equal(t, "08:00", run.Details["digest_time_utc"])
	assert.Contains(t, run.Details, "notified")
	require.NotNil(t, run.FinishedAt)
}

func TestRunOnce_SkipsExistingDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category := f.seedCategory(t, models.SectionSecurityNews)
	source := f.seedSource(t, category.ID)
	f.seedArticle(t, source.ID, models.SectionSecurityNews, "Todays Story", "content")

	// Today's digest already exists
	_, err := f.service.Generate(ctx, time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err)

	scheduler, jobRunService := newScheduler(t, f)
	require.NoError(t, scheduler.RunOnce(ctx))

	run, err := jobRunService.GetLatest(ctx, jobName)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunStatusSkipped, run.Status)
	assert.Equal(t, skipAlreadyExists, run.Details["reason"])
}

func TestRunOnce_RecordsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No articles at all, so generation fails
	scheduler, jobRunService := newScheduler(t, f)
	require.Error(t, scheduler.RunOnce(ctx))

	run, err := jobRunService.GetLatest(ctx, jobName)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunStatusError, run.Status)
	assert.Contains(t, run.ErrorMessage, "no unprocessed articles")
}
