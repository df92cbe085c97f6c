package config

import (
	"os"
	"strconv"
)

// Settings is the fully resolved runtime configuration, read from the
// environment after Load has layered in any YAML file. Fields left at their
// zero value fall back to each component's own defaults.
type Settings struct {
	Library    LibraryConfig
	OCR        OCRConfig
	Extraction ExtractionConfig
	Cache      CacheConfig
	Chunking   ChunkingConfig
	Embedding  EmbeddingConfig
	Qdrant     QdrantConfig
	Model      ModelConfig
	Answer     AnswerConfig
	Ingestion  IngestionConfig
	Server     ServerConfig
}

// FromEnv resolves the runtime settings from environment variables.
func FromEnv() *Settings {
	return &Settings{
		Library: LibraryConfig{
			TenantID:          os.Getenv("GRAPH_TENANT_ID"),
			ClientID:          os.Getenv("GRAPH_CLIENT_ID"),
			ClientSecret:      os.Getenv("GRAPH_CLIENT_SECRET"),
			SiteID:            os.Getenv("GRAPH_SITE_ID"),
			RequestsPerSecond: envInt("GRAPH_RPS", 0),
		},
		OCR: OCRConfig{
			Endpoint: os.Getenv("OCR_ENDPOINT"),
			Language: os.Getenv("OCR_LANGUAGE"),
		},
		Extraction: ExtractionConfig{
			PageWorkers: envInt("EXTRACT_PAGE_WORKERS", 0),
			Retries:     envInt("EXTRACT_RETRIES", 0),
		},
		Cache: CacheConfig{
			DBPath: os.Getenv("CACHE_DB"),
		},
		Chunking: ChunkingConfig{
			MaxSize: envInt("CHUNK_SIZE", 0),
			Overlap: envInt("CHUNK_OVERLAP", -1),
		},
		Embedding: EmbeddingConfig{
			Provider:   os.Getenv("EMBEDDING_PROVIDER"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
			APIKey:     envFirst("EMBEDDING_API_KEY", "OPENAI_API_KEY"),
			Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
			Retries:    envInt("EMBEDDING_RETRIES", 0),
		},
		Qdrant: QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       envInt("QDRANT_PORT", 0),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			TLS:        os.Getenv("QDRANT_TLS") == "true",
		},
		Model: ModelConfig{
			Provider:    os.Getenv("MODEL_PROVIDER"),
			MaxTokens:   envInt("MODEL_MAX_TOKENS", 4096),
			Temperature: envFloat32("MODEL_TEMPERATURE", 0.1),
			Ollama: OllamaConfig{
				Host:  os.Getenv("OLLAMA_HOST"),
				Model: os.Getenv("OLLAMA_MODEL"),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  os.Getenv("OPENAI_MODEL"),
			},
		},
		Answer: AnswerConfig{
			TopK:             envInt("ANSWER_TOP_K", 0),
			Threshold:        envFloat32("ANSWER_THRESHOLD", 0),
			MaxContextTokens: envInt("ANSWER_MAX_CONTEXT_TOKENS", 0),
		},
		Ingestion: IngestionConfig{
			DocWorkers: envInt("INGEST_DOC_WORKERS", 0),
		},
		Server: ServerConfig{
			Host:   os.Getenv("SERVER_HOST"),
			Port:   envInt("SERVER_PORT", 8080),
			APIKey: os.Getenv("ORACULO_API_KEY"),
		},
	}
}

// envInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func envFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// envFirst returns the first non-empty value among the named environment
// variables.
func envFirst(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
