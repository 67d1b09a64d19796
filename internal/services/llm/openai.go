package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
)

var openaiTierModels = map[string]string{
	interfaces.TierFast:     "gpt-4o-mini",
	interfaces.TierSmart:    "gpt-4o",
	interfaces.TierSmartest: "o1",
}

// OpenAIProvider completes prompts against the OpenAI chat API.
type OpenAIProvider struct {
	client  *openai.Client
	timeout time.Duration
	logger  arbor.ILogger
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey string, timeout time.Duration, logger arbor.ILogger) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or llm.openai_api_key in config)")
	}

	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) ModelForTier(tier string) string {
	if model, ok := openaiTierModels[tier]; ok {
		return model
	}
	return openaiTierModels[interfaces.TierFast]
}

func (p *OpenAIProvider) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(timeoutCtx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from openai")
	}
	return content, nil
}
