package summarizer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/settings"
	"github.com/ternarybob/vigil/internal/storage/sqlite"
)

// fakeProvider returns a canned response or error.
type fakeProvider struct {
	response string
	err      error
	lastReq  interfaces.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req interfaces.CompletionRequest) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Name() string                 { return "fake" }
func (f *fakeProvider) ModelForTier(_ string) string { return "fake-model" }

type fakeProviderSource struct {
	provider *fakeProvider
	err      error
}

func (f *fakeProviderSource) ForProvider(_ string) (interfaces.LLMProvider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

func newTestSettings(t *testing.T) *settings.Service {
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

	return settings.NewService(storage.SettingStorage(), common.GetLogger())
}

func testArticle() *models.Article {
	return &models.Article{
		ID:         common.NewID(),
		Title:      "Critical Flaw Patched",
		RawContent: "Vendors released fixes for a critical flaw today.",
	}
}

func TestSummarize_ParsesJSONResponse(t *testing.T) {
	provider := &fakeProvider{response: `{"summary": "A critical flaw was patched across vendors."}`}
	s := NewService(newTestSettings(t), &fakeProviderSource{provider: provider}, common.GetLogger())

	result := s.Summarize(context.Background(), testArticle())

	assert.False(t, result.Fallback)
	assert.Equal(t, "A critical flaw was patched across vendors.", result.Summary)
	assert.Equal(t, "fake-model", result.Model)
	assert.InDelta(t, 0.2, provider.lastReq.Temperature, 0.001)
	assert.Equal(t, 200, provider.lastReq.MaxTokens)
	assert.Contains(t, provider.lastReq.Prompt, "Critical Flaw Patched")
}

func TestSummarize_ExtractsWrappedJSON(t *testing.T) {
	provider := &fakeProvider{response: "Here you go:\n```json\n{\"summary\": \"Wrapped summary.\"}\n```"}
	s := NewService(newTestSettings(t), &fakeProviderSource{provider: provider}, common.GetLogger())

	result := s.Summarize(context.Background(), testArticle())

	assert.False(t, result.Fallback)
	assert.Equal(t, "Wrapped summary.", result.Summary)
}

func TestSummarize_FallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("model unavailable")}
	s := NewService(newTestSettings(t), &fakeProviderSource{provider: provider}, common.GetLogger())

	article := testArticle()
	result := s.Summarize(context.Background(), article)

	assert.True(t, result.Fallback)
	assert.Equal(t, article.Title, result.Summary)
}

func TestSummarize_FallsBackOnUnusableResponse(t *testing.T) {
	provider := &fakeProvider{response: "I cannot summarize this article."}
	s := NewService(newTestSettings(t), &fakeProviderSource{provider: provider}, common.GetLogger())

	article := testArticle()
	result := s.Summarize(context.Background(), article)

	assert.True(t, result.Fallback)
	assert.Equal(t, article.Title, result.Summary)
}

func TestSummarize_FallsBackWhenProviderUnavailable(t *testing.T) {
	s := NewService(newTestSettings(t), &fakeProviderSource{err: fmt.Errorf("no api key")}, common.GetLogger())

	article := testArticle()
	result := s.Summarize(context.Background(), article)

	assert.True(t, result.Fallback)
	assert.Equal(t, article.Title, result.Summary)
}
