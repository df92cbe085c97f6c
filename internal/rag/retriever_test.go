package rag

import (
	"context"
	"errors"
	"testing"
)

// fakeEmbedder returns a fixed vector for every text, or a configured error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func Test_Retriever_Retrieve(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	chunks := []Chunk{chunkN("doc", 0), chunkN("doc", 1)}
	if err := store.Upsert(context.Background(), "doc", chunks, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, store, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "what is the policy?", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Chunk.Position != 0 {
		t.Errorf("expected position 0 first, got %d", got[0].Chunk.Position)
	}
}

// Test_Retriever_DefaultTopK verifies that topK=0 falls back to the
// configured default.
func Test_Retriever_DefaultTopK(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	chunks := make([]Chunk, 10)
	vectors := make([][]float32, 10)
	for i := range chunks {
		chunks[i] = chunkN("doc", i)
		vectors[i] = []float32{1, 0}
	}
	if err := store.Upsert(context.Background(), "doc", chunks, vectors); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, store, 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	got, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected default top-k of 3, got %d", len(got))
	}
}

// Test_Retriever_EmptyIndex verifies that ErrEmptyIndex from the store
// propagates unwrapped so callers can match it.
func Test_Retriever_EmptyIndex(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, NewMemoryStore(), 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	_, err = r.Retrieve(context.Background(), "q", 5)
	if !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

// Test_Retriever_EmbedderError verifies that an embedding failure surfaces
// as an error without hitting the store.
func Test_Retriever_EmbedderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("backend down")
	r, err := NewRetriever(&fakeEmbedder{err: wantErr}, NewMemoryStore(), 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	_, err = r.Retrieve(context.Background(), "q", 5)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped embedder error, got %v", err)
	}
}

func Test_NewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, NewMemoryStore(), 5); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 5); err == nil {
		t.Error("expected error for nil store")
	}
}
