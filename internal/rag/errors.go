package rag

import "errors"

// ErrEmptyIndex is returned by VectorStore.Query when no document has been
// indexed yet. Callers surface it as "nothing indexed yet" rather than an
// empty result set, which would be indistinguishable from a bad query.
var ErrEmptyIndex = errors.New("rag: index is empty")

// ErrEmbeddingUnavailable is returned when the embedding capability keeps
// failing after bounded retries. Indexing for the affected chunks halts and
// may be retried later; it never silently degrades retrieval quality.
var ErrEmbeddingUnavailable = errors.New("rag: embedding capability unavailable")
