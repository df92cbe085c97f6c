// Package rag defines the interfaces for the retrieval-augmented answering
// components: vector storage, chunk retrieval, and embedding. Concrete
// implementations (in-memory, Qdrant) satisfy these interfaces so the
// answering layer never depends on a specific backend.
package rag

import (
	"context"
)

// Chunk is a bounded span of extracted text used as a retrieval unit.
// Chunks are derived deterministically from a document's extracted text,
// so re-chunking an unchanged document reproduces identical chunks.
type Chunk struct {
	// ID is the deterministic identifier for this chunk, derived from the
	// document identity, fingerprint, and position.
	ID string

	// Identity is the document's library identity (drive ID + path).
	Identity string

	// Fingerprint is the content hash of the document version this chunk
	// was derived from.
	Fingerprint string

	// Page is the 1-based page number the chunk's text was extracted from.
	Page int

	// Start and End are the byte offsets of the chunk within its page text.
	Start int
	End   int

	// Position is the chunk's index in document reading order, across pages.
	Position int

	// Category and Language are best-effort labels inferred from the
	// document's library path at ingestion time. Either may be "general"
	// respectively "unknown" when no hint matched.
	Category string
	Language string

	// Text is the chunk content.
	Text string
}

// ScoredChunk pairs a retrieved chunk with its similarity score (0.0–1.0).
type ScoredChunk struct {
	Chunk Chunk

	// Score is the cosine similarity between the chunk and the query.
	Score float32
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert atomically replaces all chunks for the given document identity.
	// The embeddings slice must be parallel to chunks. No concurrent Query
	// may observe a mix of the identity's old and new chunks.
	Upsert(ctx context.Context, identity string, chunks []Chunk, embeddings [][]float32) error

	// Query returns the k most similar chunks for the query embedding,
	// ordered by descending similarity. Ties are broken by document reading
	// order (earlier chunk wins). Returns [ErrEmptyIndex] if nothing has
	// been indexed yet.
	Query(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error)

	// Delete removes all chunks for the given document identity.
	Delete(ctx context.Context, identity string) error

	// Close releases any resources held by the store.
	Close() error
}

// Retriever is the high-level interface used by the answerer to fetch
// relevant chunks for a question. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant chunks for the question.
	Retrieve(ctx context.Context, question string, topK int) ([]ScoredChunk, error)
}
