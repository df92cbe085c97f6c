package embedder

import (
	"fmt"

	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with Config.Dimensions.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config holds the resolved embedding backend settings.
type Config struct {
	// Provider selects the backend: "ollama" or "openai".
	Provider string
	// Endpoint is the backend base URL. Empty selects the backend default.
	Endpoint string
	// APIKey authenticates against the backend. Required for openai.
	APIKey string
	// Model is the embedding model name. Empty selects the backend default.
	Model string
	// Dimensions is the embedding vector length. Zero selects the backend
	// default (ollama: 768, openai: 1536).
	Dimensions int
}

// Dims returns the effective embedding vector size for the config.
// Callers that pre-configure a vector store (Qdrant collection creation)
// should use this rather than hardcoding a value.
func (c *Config) Dims() int {
	if c.Dimensions > 0 {
		return c.Dimensions
	}
	switch c.Provider {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs a rag.Embedder for the configured backend.
func New(cfg *Config) (rag.Embedder, error) {
	switch cfg.Provider {
	case "", "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires an API key")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai)", cfg.Provider)
	}
}
