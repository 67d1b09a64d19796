package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/storage/sqlite"
)

func newTestService(t *testing.T) *Service {
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

	return NewService(storage.SettingStorage(), common.GetLogger())
}

func TestGet_ReturnsDefaultWhenUnset(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	interval, err := s.GetInt(ctx, KeyFetchIntervalMinutes)
	require.NoError(t, err)
	assert.Equal(t, 60, interval)

	provider, err := s.GetString(ctx, KeySummarizerProvider)
	require.NoError(t, err)
	assert.Equal(t, "ollama", provider)

	notifications, err := s.GetBool(ctx, KeyTelegramNotifications)
	require.NoError(t, err)
	assert.True(t, notifications)

	sections, err := s.GetStringSlice(ctx, KeyDigestSections)
	require.NoError(t, err)
	assert.Equal(t, []string{models.SectionSecurityNews, models.SectionProductNews, models.SectionMarket}, sections)
}

func TestSet_PersistsAcrossReads(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyFetchIntervalMinutes, 30))
	interval, err := s.GetInt(ctx, KeyFetchIntervalMinutes)
	require.NoError(t, err)
	assert.Equal(t, 30, interval)

	require.NoError(t, s.Set(ctx, KeyDigestSections, []string{models.SectionResearch}))
	sections, err := s.GetStringSlice(ctx, KeyDigestSections)
	require.NoError(t, err)
	assert.Equal(t, []string{models.SectionResearch}, sections)
}

func TestSet_RejectsInvalidValues(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	assert.Error(t, s.Set(ctx, KeyFetchIntervalMinutes, 0))
	assert.Error(t, s.Set(ctx, KeyFetchIntervalMinutes, "sixty"))
	assert.Error(t, s.Set(ctx, KeyDigestTime, "8:00"))
	assert.Error(t, s.Set(ctx, KeyDigestTime, "25:00"))
	assert.Error(t, s.Set(ctx, KeyDigestTime, "08:60"))
	assert.Error(t, s.Set(ctx, KeyDigestSections, []string{"sports"}))
	assert.Error(t, s.Set(ctx, KeyDigestSections, []string{}))
	assert.Error(t, s.Set(ctx, KeySummarizerProvider, "bedrock"))
	assert.Error(t, s.Set(ctx, KeySummarizerTier, "ultra"))
	assert.Error(t, s.Set(ctx, KeyTelegramNotifications, "yes"))

	require.NoError(t, s.Set(ctx, KeyDigestTime, "23:59"))
	require.NoError(t, s.Set(ctx, KeySummarizerProvider, "anthropic"))
}

func TestUnknownKeyRejected(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nonexistent")
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, "nonexistent", 1))
	assert.Error(t, s.Reset(ctx, "nonexistent"))
}

func TestReset_RevertsToDefault(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyDigestTime, "21:30"))
	require.NoError(t, s.Reset(ctx, KeyDigestTime))

	value, err := s.GetString(ctx, KeyDigestTime)
	require.NoError(t, err)
	assert.Equal(t, "08:00", value)
}

func TestList_MarksDefaults(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyFetchWorkerCount, 5))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, len(s.registry))

	byKey := make(map[string]*models.SettingInfo)
	for _, info := range infos {
		byKey[info.Key] = info
	}
	assert.False(t, byKey[KeyFetchWorkerCount].IsDefault)
	assert.Equal(t, 5, byKey[KeyFetchWorkerCount].Value)
	assert.True(t, byKey[KeyDigestTime].IsDefault)
	assert.NotEmpty(t, byKey[KeyDigestTime].Description)
	assert.Equal(t, "08:00", byKey[KeyDigestTime].Default)
	assert.Contains(t, byKey[KeySummarizerTier].Options, "fast")
}
