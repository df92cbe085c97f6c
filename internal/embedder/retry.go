package embedder

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// RetryEmbedder decorates a rag.Embedder with exponential backoff. When the
// backend stays unreachable past the retry budget the error wraps
// rag.ErrEmbeddingUnavailable, which callers treat as a hard stop rather
// than a per-document failure.
type RetryEmbedder struct {
	inner   rag.Embedder
	retries uint64
}

// WithRetry wraps an embedder with up to retries retry attempts per batch.
// retries <= 0 selects 3.
func WithRetry(inner rag.Embedder, retries int) *RetryEmbedder {
	if retries <= 0 {
		retries = 3
	}
	return &RetryEmbedder{inner: inner, retries: uint64(retries)}
}

// Embed calls the wrapped embedder, retrying transient failures.
func (e *RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	op := func() error {
		var err error
		embeddings, err = e.inner.Embed(ctx, texts)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.retries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", rag.ErrEmbeddingUnavailable, err)
	}
	return embeddings, nil
}
