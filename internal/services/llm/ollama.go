package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/interfaces"
)

var ollamaTierModels = map[string]string{
	interfaces.TierFast:     "llama3.2",
	interfaces.TierSmart:    "llama3.1:8b",
	interfaces.TierSmartest: "llama3.1:70b",
}

// OllamaProvider completes prompts against a local Ollama server. This
// is the default provider so the pipeline works without any cloud
// credentials.
type OllamaProvider struct {
	baseURL string
	client  *httpclient.Client
	timeout time.Duration
	logger  arbor.ILogger
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(baseURL string, timeout time.Duration, logger arbor.ILogger) (*OllamaProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("Ollama URL is required (set OLLAMA_URL or llm.ollama_url in config)")
	}

	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.New(httpclient.WithTimeout(timeout)),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return ProviderOllama
}

func (p *OllamaProvider) ModelForTier(tier string) string {
	if model, ok := ollamaTierModels[tier]; ok {
		return model
	}
	return ollamaTierModels[interfaces.TierFast]
}

func (p *OllamaProvider) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := []ollamaMessage{}
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	body, err := p.client.PostJSON(timeoutCtx, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama completion failed: %w", err)
	}

	var resp ollamaChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}
