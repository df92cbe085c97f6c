package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oraculo-labs/oraculo-go/internal/answer"
	"github.com/oraculo-labs/oraculo-go/internal/cache"
	"github.com/oraculo-labs/oraculo-go/internal/chunker"
	"github.com/oraculo-labs/oraculo-go/internal/config"
	"github.com/oraculo-labs/oraculo-go/internal/embedder"
	"github.com/oraculo-labs/oraculo-go/internal/extract"
	"github.com/oraculo-labs/oraculo-go/internal/ingestion"
	"github.com/oraculo-labs/oraculo-go/internal/library"
	"github.com/oraculo-labs/oraculo-go/internal/ocr"
	"github.com/oraculo-labs/oraculo-go/internal/provider"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// defaultCollection is the Qdrant collection used when none is configured.
const defaultCollection = "oraculo-docs"

// buildEmbedder constructs the configured embedder wrapped with retries.
func buildEmbedder(set *config.Settings) (rag.Embedder, *embedder.Config, error) {
	cfg := &embedder.Config{
		Provider:   set.Embedding.Provider,
		Endpoint:   set.Embedding.Endpoint,
		APIKey:     set.Embedding.APIKey,
		Model:      set.Embedding.Model,
		Dimensions: set.Embedding.Dimensions,
	}
	emb, err := embedder.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return embedder.WithRetry(emb, set.Embedding.Retries), cfg, nil
}

// buildStore connects to Qdrant, creating the collection if needed.
func buildStore(ctx context.Context, set *config.Settings, embCfg *embedder.Config) (*rag.QdrantStore, error) {
	collection := set.Qdrant.Collection
	if collection == "" {
		collection = defaultCollection
	}
	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       set.Qdrant.Host,
		Port:       set.Qdrant.Port,
		Collection: collection,
		VectorSize: uint64(embCfg.Dims()), //nolint:gosec // dimensions are bounded
		APIKey:     set.Qdrant.APIKey,
		UseTLS:     set.Qdrant.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", set.Qdrant.Host, set.Qdrant.Port, err)
	}
	return store, nil
}

// buildLibrary constructs the Microsoft Graph library client.
func buildLibrary(set *config.Settings) (*library.Client, error) {
	return library.NewClient(&library.Config{
		TenantID:          set.Library.TenantID,
		ClientID:          set.Library.ClientID,
		ClientSecret:      set.Library.ClientSecret,
		SiteID:            set.Library.SiteID,
		RequestsPerSecond: float64(set.Library.RequestsPerSecond),
	})
}

// buildAnswererWith wires a retriever and chat model over an existing
// embedder and vector store. The caller owns the store's lifetime, which is
// what lets `serve` share one store between the answerer and the pipeline.
func buildAnswererWith(ctx context.Context, set *config.Settings, emb rag.Embedder, store rag.VectorStore, log *slog.Logger) (*answer.Answerer, error) {
	retriever, err := rag.NewRetriever(emb, store, set.Answer.TopK)
	if err != nil {
		return nil, err
	}

	providerCfg := &provider.Config{
		Backend:     provider.Backend(set.Model.Provider),
		MaxTokens:   set.Model.MaxTokens,
		Temperature: set.Model.Temperature,
	}
	switch providerCfg.Backend {
	case "", provider.BackendOllama:
		providerCfg.BaseURL = set.Model.Ollama.Host
		providerCfg.Model = set.Model.Ollama.Model
	case provider.BackendOpenAI:
		providerCfg.APIKey = set.Model.OpenAI.APIKey
		providerCfg.Model = set.Model.OpenAI.Model
	}
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, err
	}

	return answer.New(chatModel, retriever, answer.Config{
		TopK:             set.Answer.TopK,
		Threshold:        set.Answer.Threshold,
		MaxContextTokens: set.Answer.MaxContextTokens,
	}, log)
}

// buildAnswerer wires an Answerer over the configured Qdrant store. The
// returned cleanup closes the vector store connection.
func buildAnswerer(ctx context.Context, set *config.Settings, log *slog.Logger) (*answer.Answerer, func(), error) {
	emb, embCfg, err := buildEmbedder(set)
	if err != nil {
		return nil, nil, err
	}

	store, err := buildStore(ctx, set, embCfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	answerer, err := buildAnswererWith(ctx, set, emb, store, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return answerer, cleanup, nil
}

// pipelineDeps bundles everything buildPipeline wires together so callers
// can register readiness probes and close resources.
type pipelineDeps struct {
	pipeline *ingestion.Pipeline
	library  *library.Client
	engine   *ocr.HTTPEngine
	// store is nil when the vector store is owned by the caller.
	store rag.VectorStore
	cache *cache.SQLiteStore
}

// close releases the pipeline's long-lived resources.
func (d *pipelineDeps) close() {
	if d.cache != nil {
		_ = d.cache.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// buildPipelineWith wires the ingestion pipeline over an existing embedder
// and vector store. The caller owns the store's lifetime.
func buildPipelineWith(set *config.Settings, emb rag.Embedder, store rag.VectorStore, log *slog.Logger) (*pipelineDeps, error) {
	lib, err := buildLibrary(set)
	if err != nil {
		return nil, err
	}

	if set.OCR.Endpoint == "" {
		return nil, fmt.Errorf("OCR_ENDPOINT is required for ingestion")
	}
	engine := ocr.NewHTTPEngine(&ocr.HTTPConfig{
		Endpoint: set.OCR.Endpoint,
		Language: set.OCR.Language,
	})

	extractor := extract.NewExtractor(engine, extract.Options{
		PageWorkers:   set.Extraction.PageWorkers,
		EngineRetries: set.Extraction.Retries,
	}, log)

	dbPath := set.Cache.DBPath
	if dbPath == "" {
		dbPath, err = cache.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	cacheStore, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}

	ch := chunker.New(chunker.Config{
		MaxSize: set.Chunking.MaxSize,
		Overlap: set.Chunking.Overlap,
	})

	pipeline, err := ingestion.NewPipeline(lib, cacheStore, extractor, ch, emb, store,
		ingestion.Config{DocWorkers: set.Ingestion.DocWorkers}, log)
	if err != nil {
		_ = cacheStore.Close()
		return nil, err
	}

	return &pipelineDeps{
		pipeline: pipeline,
		library:  lib,
		engine:   engine,
		cache:    cacheStore,
	}, nil
}

// buildPipeline wires the full ingestion pipeline against the configured
// Qdrant store.
func buildPipeline(ctx context.Context, set *config.Settings, log *slog.Logger) (*pipelineDeps, error) {
	emb, embCfg, err := buildEmbedder(set)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, set, embCfg)
	if err != nil {
		return nil, err
	}

	deps, err := buildPipelineWith(set, emb, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	deps.store = store
	return deps, nil
}
