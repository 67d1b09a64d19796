package interfaces

import "context"

// Model tiers. Each provider maps a tier to one of its own models.
const (
	TierFast     = "fast"
	TierSmart    = "smart"
	TierSmartest = "smartest"
)

// CompletionRequest is a single-turn completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// LLMProvider is a minimal completion interface over one vendor API.
type LLMProvider interface {
	// Complete returns the raw text of the model response.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name returns the provider identifier (anthropic, openai, google, ollama).
	Name() string

	// ModelForTier maps a tier name to this provider's model id.
	ModelForTier(tier string) string
}
