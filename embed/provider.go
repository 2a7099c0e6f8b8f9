// Package embed turns text into vectors through a local or hosted
// embedding model.
package embed

import (
	"context"
	"fmt"
)

// Provider generates embeddings for a batch of texts. The returned slice
// has one vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures an embedding provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// NewProvider creates an embedding provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "lmstudio":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:1234"
		}
		return NewOpenAICompat(cfg), nil
	case "openai":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com"
		}
		return NewOpenAICompat(cfg), nil
	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("custom embedding provider requires base_url")
		}
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("embedding provider not specified")
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
