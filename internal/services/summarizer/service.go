package summarizer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/settings"
)

const systemPrompt = "You are a security news editor. You summarize articles for a daily digest read by security professionals."

const promptTemplate = `Summarize the following article in 2-3 sentences for a security news digest.
Respond with JSON only, in exactly this shape: {"summary": "..."}

Title: %TITLE%

Content:
%CONTENT%`

const (
	summaryTemperature = 0.2
	summaryMaxTokens   = 200
	maxContentChars    = 8000
)

// Result is the outcome of one summarization attempt. Fallback is true
// when the summary is just the article title because no provider
// response could be used.
type Result struct {
	Summary  string
	Provider string
	Model    string
	Fallback bool
}

// ProviderSource resolves provider names to LLM providers. Satisfied
// by llm.Factory.
type ProviderSource interface {
	ForProvider(name string) (interfaces.LLMProvider, error)
}

// Service produces article summaries through the configured LLM
// provider. Summarize never returns an error: any failure falls back
// to the article title so digest generation always completes.
type Service struct {
	settings *settings.Service
	factory  ProviderSource
	logger   arbor.ILogger
}

// NewService creates a summarizer.
func NewService(settingsService *settings.Service, factory ProviderSource, logger arbor.ILogger) *Service {
	return &Service{
		settings: settingsService,
		factory:  factory,
		logger:   logger,
	}
}

// Summarize generates a short summary for an article. The provider and
// tier settings are read on every call, so a settings change takes
// effect without a restart.
func (s *Service) Summarize(ctx context.Context, article *models.Article) Result {
	fallback := Result{Summary: article.Title, Fallback: true}

	providerName, err := s.settings.GetString(ctx, settings.KeySummarizerProvider)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read summarizer provider, using title")
		return fallback
	}
	tier, err := s.settings.GetString(ctx, settings.KeySummarizerTier)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read summarizer tier, using title")
		return fallback
	}

	provider, err := s.factory.ForProvider(providerName)
	if err != nil {
		s.logger.Warn().Str("provider", providerName).Err(err).Msg("Summarizer provider unavailable, using title")
		return fallback
	}

	model := provider.ModelForTier(tier)
	response, err := provider.Complete(ctx, interfaces.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(article),
		Model:       model,
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		s.logger.Warn().
			Str("provider", providerName).
			Str("url", article.URL).
			Err(err).
			Msg("Summarization failed, using title")
		return fallback
	}

	summary := parseSummary(response)
	if summary == "" {
		s.logger.Warn().
			Str("provider", providerName).
			Str("url", article.URL).
			Msg("Unusable summarizer response, using title")
		return fallback
	}

	return Result{Summary: summary, Provider: providerName, Model: model}
}

func buildPrompt(article *models.Article) string {
	content := article.RawContent
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}
	prompt := strings.Replace(promptTemplate, "%TITLE%", article.Title, 1)
	return strings.Replace(prompt, "%CONTENT%", content, 1)
}

// parseSummary extracts the summary from the model response. Models
// sometimes wrap the JSON in prose or code fences, so the parser looks
// for the outermost JSON object before giving up.
func parseSummary(response string) string {
	response = strings.TrimSpace(response)

	type summaryPayload struct {
		Summary string `json:"summary"`
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(response), &payload); err == nil {
		return strings.TrimSpace(payload.Summary)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(response[start:end+1]), &payload); err == nil {
			return strings.TrimSpace(payload.Summary)
		}
	}

	return ""
}
