package rag

import (
	"context"
	"errors"
	"fmt"
)

// DefaultRetriever implements the Retriever interface by combining an
// Embedder and a VectorStore. It embeds the question at retrieval time and
// delegates similarity search to the store.
type DefaultRetriever struct {
	// embedder converts the question text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count when Retrieve is
// called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the question and returns the top-k most relevant chunks.
// If topK is 0 the defaultTopK configured at construction time is used.
// [ErrEmptyIndex] propagates unchanged so callers can distinguish "nothing
// indexed yet" from a retrieval failure.
func (r *DefaultRetriever) Retrieve(ctx context.Context, question string, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for question")
	}

	chunks, err := r.store.Query(ctx, embeddings[0], topK)
	if err != nil {
		if errors.Is(err, ErrEmptyIndex) {
			return nil, err
		}
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return chunks, nil
}
