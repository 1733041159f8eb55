package ai

import (
	"context"
	"fmt"

	"github.com/aivs/invoice-compliance/internal/models"
)

// Provider is a large-language-model backend that answers a single prompt
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Default models per provider
const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOllamaModel = "llama3"
	DefaultOllamaURL   = "http://localhost:11434"
)

// NewProvider creates the named provider. An empty name selects the configured
// default and an empty model selects the provider's configured model.
func NewProvider(cfg models.AIConfig, providerName, modelName string) (Provider, error) {
	if providerName == "" {
		providerName = cfg.DefaultProvider
	}

	switch providerName {
	case "openai":
		model := modelName
		if model == "" {
			model = cfg.OpenAI.Model
		}
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, model), nil

	case "gemini":
		model := modelName
		if model == "" {
			model = cfg.Gemini.Model
		}
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return NewGeminiProvider(cfg.Gemini.APIKey, model), nil

	case "ollama":
		model := modelName
		if model == "" {
			model = cfg.Ollama.Model
		}
		return NewOllamaProvider(cfg.Ollama.BaseURL, model), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}
