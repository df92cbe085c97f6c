// Package config provides YAML-based configuration for oraculo.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. ORACULO_CONFIG environment variable
//  3. ~/.oraculo/config.yaml
//  4. ./oraculo.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Library configures the Microsoft Graph document library connection.
	Library LibraryConfig `yaml:"library"`

	// OCR configures the external OCR engine.
	OCR OCRConfig `yaml:"ocr"`

	// Extraction configures text extraction.
	Extraction ExtractionConfig `yaml:"extraction"`

	// Cache configures the extraction cache.
	Cache CacheConfig `yaml:"cache"`

	// Chunking configures document chunking.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Model configures the LLM chat model provider for answer generation.
	Model ModelConfig `yaml:"model"`

	// Answer configures retrieval and grounding.
	Answer AnswerConfig `yaml:"answer"`

	// Ingestion configures the ingestion pipeline.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LibraryConfig holds Microsoft Graph connection settings.
type LibraryConfig struct {
	// TenantID is the Entra ID tenant. Prefer env var GRAPH_TENANT_ID.
	TenantID string `yaml:"tenant_id"`
	// ClientID is the app registration client ID.
	ClientID string `yaml:"client_id"`
	// ClientSecret is the app registration secret. Prefer env var GRAPH_CLIENT_SECRET.
	ClientSecret string `yaml:"client_secret"`
	// SiteID is the SharePoint site whose drives hold the document library.
	SiteID string `yaml:"site_id"`
	// RequestsPerSecond caps the Graph API request rate.
	RequestsPerSecond int `yaml:"requests_per_second"`
}

// OCRConfig holds OCR engine settings.
type OCRConfig struct {
	// Endpoint is the OCR engine base URL.
	Endpoint string `yaml:"endpoint"`
	// Language is the recognition language hint (e.g. "por+eng").
	Language string `yaml:"language"`
}

// ExtractionConfig holds text extraction settings.
type ExtractionConfig struct {
	// PageWorkers caps concurrent page recognitions per document.
	PageWorkers int `yaml:"page_workers"`
	// Retries is the per-page OCR retry budget.
	Retries int `yaml:"retries"`
}

// CacheConfig holds extraction cache settings.
type CacheConfig struct {
	// DBPath is the SQLite database path. Empty selects ~/.oraculo/extractions.db.
	DBPath string `yaml:"db_path"`
}

// ChunkingConfig holds chunking settings.
type ChunkingConfig struct {
	// MaxSize is the maximum chunk size in characters.
	MaxSize int `yaml:"max_size"`
	// Overlap is the character overlap between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// Retries is the per-batch retry budget.
	Retries int `yaml:"retries"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai.
	Provider string `yaml:"provider"`
	// MaxTokens is the maximum number of tokens in the generated answer.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32 `yaml:"temperature"`
	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`
	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// AnswerConfig holds retrieval and grounding settings.
type AnswerConfig struct {
	// TopK is how many chunks retrieval returns per question.
	TopK int `yaml:"top_k"`
	// Threshold is the minimum similarity score for a chunk to be used.
	Threshold float32 `yaml:"threshold"`
	// MaxContextTokens caps the estimated token size of the excerpt context.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// IngestionConfig holds ingestion pipeline settings.
type IngestionConfig struct {
	// DocWorkers caps how many documents are processed concurrently.
	DocWorkers int `yaml:"doc_workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var ORACULO_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"GRAPH_TENANT_ID", func(c *Config) string { return c.Library.TenantID }},
	{"GRAPH_CLIENT_ID", func(c *Config) string { return c.Library.ClientID }},
	{"GRAPH_CLIENT_SECRET", func(c *Config) string { return c.Library.ClientSecret }},
	{"GRAPH_SITE_ID", func(c *Config) string { return c.Library.SiteID }},
	{"GRAPH_RPS", func(c *Config) string { return intStr(c.Library.RequestsPerSecond) }},
	{"OCR_ENDPOINT", func(c *Config) string { return c.OCR.Endpoint }},
	{"OCR_LANGUAGE", func(c *Config) string { return c.OCR.Language }},
	{"EXTRACT_PAGE_WORKERS", func(c *Config) string { return intStr(c.Extraction.PageWorkers) }},
	{"EXTRACT_RETRIES", func(c *Config) string { return intStr(c.Extraction.Retries) }},
	{"CACHE_DB", func(c *Config) string { return c.Cache.DBPath }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.MaxSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_RETRIES", func(c *Config) string { return intStr(c.Embedding.Retries) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"ANSWER_TOP_K", func(c *Config) string { return intStr(c.Answer.TopK) }},
	{"ANSWER_THRESHOLD", func(c *Config) string { return float32Str(c.Answer.Threshold) }},
	{"ANSWER_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Answer.MaxContextTokens) }},
	{"INGEST_DOC_WORKERS", func(c *Config) string { return intStr(c.Ingestion.DocWorkers) }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"ORACULO_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("ORACULO_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".oraculo", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("oraculo.yaml"); err == nil {
		return "oraculo.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
