package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a VectorStore backed by process memory with brute-force
// cosine similarity search. It backs `serve --memory` for single-host use
// without a Qdrant instance, and it is the reference implementation the
// Qdrant store's semantics are specified against.
//
// All chunks for one identity are replaced under a single write lock, so a
// concurrent Query sees either the old version or the new one, never a mix.
type MemoryStore struct {
	mu sync.RWMutex

	// entries maps document identity to its current chunk set.
	entries map[string]*memoryEntry

	// dimension is fixed by the first upsert; later mismatches are rejected.
	dimension int
}

// memoryEntry holds the chunks and embeddings of one document version.
type memoryEntry struct {
	chunks  []Chunk
	vectors [][]float32
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// Upsert atomically replaces all chunks for the given identity.
func (s *MemoryStore) Upsert(_ context.Context, identity string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("memory store: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range embeddings {
		if s.dimension == 0 {
			s.dimension = len(v)
		}
		if len(v) != s.dimension {
			return fmt.Errorf("memory store: embedding %d has dimension %d, index uses %d", i, len(v), s.dimension)
		}
	}

	if len(chunks) == 0 {
		delete(s.entries, identity)
		return nil
	}

	// Copy so the caller's slices cannot mutate indexed state afterwards.
	entry := &memoryEntry{
		chunks:  append([]Chunk(nil), chunks...),
		vectors: append([][]float32(nil), embeddings...),
	}
	s.entries[identity] = entry
	return nil
}

// Query returns the k most similar chunks, ordered by descending cosine
// similarity with ties broken by (identity, position) so results are
// deterministic across runs.
func (s *MemoryStore) Query(_ context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("memory store: k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(queryEmbedding) != s.dimension {
		return nil, fmt.Errorf("memory store: query has dimension %d, index uses %d", len(queryEmbedding), s.dimension)
	}

	var results []ScoredChunk
	for _, entry := range s.entries {
		for i, v := range entry.vectors {
			results = append(results, ScoredChunk{
				Chunk: entry.chunks[i],
				Score: cosine(queryEmbedding, v),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Identity != results[j].Chunk.Identity {
			return results[i].Chunk.Identity < results[j].Chunk.Identity
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Delete removes all chunks for the given identity. Removing an unknown
// identity is a no-op.
func (s *MemoryStore) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identity)
	return nil
}

// Len returns the total number of indexed chunks across all identities.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		n += len(e.chunks)
	}
	return n
}

// Close releases no resources for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// cosine computes the cosine similarity of a and b, clamped to [0, 1].
// Zero-norm vectors score 0 rather than NaN.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return float32(sim)
}
