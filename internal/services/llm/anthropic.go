package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
)

var anthropicTierModels = map[string]string{
	interfaces.TierFast:     "claude-3-5-haiku-20241022",
	interfaces.TierSmart:    "claude-sonnet-4-20250514",
	interfaces.TierSmartest: "claude-opus-4-20250514",
}

// AnthropicProvider completes prompts against the Anthropic Messages API.
type AnthropicProvider struct {
	client  anthropic.Client
	timeout time.Duration
	logger  arbor.ILogger
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, timeout time.Duration, logger arbor.ILogger) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or llm.anthropic_api_key in config)")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

func (p *AnthropicProvider) ModelForTier(tier string) string {
	if model, ok := anthropicTierModels[tier]; ok {
		return model
	}
	return anthropicTierModels[interfaces.TierFast]
}

func (p *AnthropicProvider) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}

	return response.String(), nil
}
