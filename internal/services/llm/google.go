package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"google.golang.org/genai"
)

var googleTierModels = map[string]string{
	interfaces.TierFast:     "gemini-2.0-flash",
	interfaces.TierSmart:    "gemini-2.5-flash",
	interfaces.TierSmartest: "gemini-2.5-pro",
}

// GoogleProvider completes prompts against the Gemini API.
type GoogleProvider struct {
	client  *genai.Client
	timeout time.Duration
	logger  arbor.ILogger
}

// NewGoogleProvider creates a Gemini provider.
func NewGoogleProvider(apiKey string, timeout time.Duration, logger arbor.ILogger) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Google API key is required (set GOOGLE_API_KEY or llm.google_api_key in config)")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GoogleProvider{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

func (p *GoogleProvider) ModelForTier(tier string) string {
	if model, ok := googleTierModels[tier]; ok {
		return model
	}
	return googleTierModels[interfaces.TierFast]
}

func (p *GoogleProvider) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(timeoutCtx, req.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	return response.String(), nil
}
