package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()

	config := &common.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		CacheSize:   2000,
		BusyTimeout: 5000,
		WALMode:     true,
	}

	manager, err := NewManager(common.GetLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return manager
}

func seedCategory(t *testing.T, m interfaces.StorageManager, section string, keywords ...string) *models.Category {
	t.Helper()

	category := &models.Category{
		ID:            common.NewID(),
		Name:          "Category " + section,
		DigestSection: section,
		Keywords:      keywords,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, m.CategoryStorage().SaveCategory(context.Background(), category))
	return category
}

func seedSource(t *testing.T, m interfaces.StorageManager, categoryID, name string, intervalMinutes int, lastFetched *time.Time, enabled bool) *models.Source {
	t.Helper()

	source := &models.Source{
		ID:                   common.NewID(),
		CategoryID:           categoryID,
		Name:                 name,
		URL:                  "https://example.com/" + name,
		Type:                 models.SourceTypeWebsite,
		Enabled:              enabled,
		FetchIntervalMinutes: intervalMinutes,
		LastFetchedAt:        lastFetched,
		CreatedAt:            time.Now().UTC(),
	}
	require.NoError(t, m.SourceStorage().SaveSource(context.Background(), source))
	return source
}
