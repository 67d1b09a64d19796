package llm

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
)

// Provider identifiers accepted by the summarizer_provider setting.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Factory builds LLM providers from configuration. Providers are
// constructed lazily and cached so the summarizer can switch providers
// between calls without reconnecting.
type Factory struct {
	config  *common.LLMConfig
	logger  arbor.ILogger
	timeout time.Duration
	cache   map[string]interfaces.LLMProvider
}

// NewFactory creates a provider factory.
func NewFactory(config *common.LLMConfig, logger arbor.ILogger) *Factory {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Factory{
		config:  config,
		logger:  logger,
		timeout: timeout,
		cache:   make(map[string]interfaces.LLMProvider),
	}
}

// ForProvider returns the provider for a name, constructing it on
// first use. Unknown names and missing credentials are errors.
func (f *Factory) ForProvider(name string) (interfaces.LLMProvider, error) {
	if provider, ok := f.cache[name]; ok {
		return provider, nil
	}

	var (
		provider interfaces.LLMProvider
		err      error
	)
	switch name {
	case ProviderAnthropic:
		provider, err = NewAnthropicProvider(f.config.AnthropicAPIKey, f.timeout, f.logger)
	case ProviderOpenAI:
		provider, err = NewOpenAIProvider(f.config.OpenAIAPIKey, f.timeout, f.logger)
	case ProviderGoogle:
		provider, err = NewGoogleProvider(f.config.GoogleAPIKey, f.timeout, f.logger)
	case ProviderOllama:
		provider, err = NewOllamaProvider(f.config.OllamaURL, f.timeout, f.logger)
	default:
		return nil, fmt.Errorf("unknown llm provider '%s'", name)
	}
	if err != nil {
		return nil, err
	}

	f.cache[name] = provider
	return provider, nil
}
