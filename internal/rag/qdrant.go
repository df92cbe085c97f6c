package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
// Per-identity replacement is implemented as delete-by-filter followed by a
// point upsert; Qdrant applies each operation atomically, so a query never
// observes a mix of a document's old and new chunks.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// identityFilter matches all points belonging to one document identity.
func identityFilter(identity string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("identity", identity),
		},
	}
}

// Upsert replaces all chunks for the given identity. Old points are removed
// before the new version's points become queryable, so a superseded document
// version leaves no stale duplicates behind.
func (s *QdrantStore) Upsert(ctx context.Context, identity string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(identityFilter(identity)),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete old chunks for %q: %w", identity, err)
	}

	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			"identity":    c.Identity,
			"fingerprint": c.Fingerprint,
			"page":        int64(c.Page),
			"start":       int64(c.Start),
			"end":         int64(c.End),
			"position":    int64(c.Position),
			"category":    c.Category,
			"language":    c.Language,
			"text":        c.Text,
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed for %q: %w", identity, err)
	}

	return nil
}

// Query performs a cosine similarity search and returns the top-k results.
// Qdrant returns descending scores; equal scores are re-ordered client-side
// by (identity, position) so the ranking is deterministic.
func (s *QdrantStore) Query(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	total, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count failed: %w", err)
	}
	if total == 0 {
		return nil, ErrEmptyIndex
	}

	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		c := Chunk{ID: r.Id.GetUuid()}
		if p := r.Payload; p != nil {
			c.Identity = p["identity"].GetStringValue()
			c.Fingerprint = p["fingerprint"].GetStringValue()
			c.Page = int(p["page"].GetIntegerValue())
			c.Start = int(p["start"].GetIntegerValue())
			c.End = int(p["end"].GetIntegerValue())
			c.Position = int(p["position"].GetIntegerValue())
			c.Category = p["category"].GetStringValue()
			c.Language = p["language"].GetStringValue()
			c.Text = p["text"].GetStringValue()
		}
		scored = append(scored, ScoredChunk{Chunk: c, Score: r.Score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.Identity != scored[j].Chunk.Identity {
			return scored[i].Chunk.Identity < scored[j].Chunk.Identity
		}
		return scored[i].Chunk.Position < scored[j].Chunk.Position
	})

	return scored, nil
}

// Delete removes all chunks for the given identity.
func (s *QdrantStore) Delete(ctx context.Context, identity string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(identityFilter(identity)),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed for %q: %w", identity, err)
	}
	return nil
}

// Client exposes the underlying Qdrant gRPC client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
