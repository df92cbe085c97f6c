package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// chunkN builds a chunk for the given identity and position.
func chunkN(identity string, position int) Chunk {
	return Chunk{
		ID:       fmt.Sprintf("%s-%d", identity, position),
		Identity: identity,
		Position: position,
		Text:     fmt.Sprintf("chunk %d of %s", position, identity),
	}
}

// Test_MemoryStore_EmptyIndex verifies that querying before any upsert
// returns ErrEmptyIndex.
func Test_MemoryStore_EmptyIndex(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.Query(context.Background(), []float32{1, 0}, 3)
	if !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

// Test_MemoryStore_UpsertAndQuery verifies basic similarity ranking.
func Test_MemoryStore_UpsertAndQuery(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	chunks := []Chunk{chunkN("doc", 0), chunkN("doc", 1)}
	vectors := [][]float32{{1, 0}, {0, 1}}
	if err := s.Upsert(context.Background(), "doc", chunks, vectors); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Query(context.Background(), []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Chunk.Position != 0 {
		t.Errorf("expected the aligned vector first, got position %d", got[0].Chunk.Position)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("results not ordered by score: %f then %f", got[0].Score, got[1].Score)
	}
}

// Test_MemoryStore_TieBreak verifies that equal scores are broken by
// identity then position, so results are deterministic across runs.
func Test_MemoryStore_TieBreak(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	vec := [][]float32{{1, 0}}
	for _, identity := range []string{"b-doc", "a-doc", "c-doc"} {
		if err := s.Upsert(context.Background(), identity, []Chunk{chunkN(identity, 0)}, vec); err != nil {
			t.Fatalf("upsert %s: %v", identity, err)
		}
	}

	got, err := s.Query(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []string{"a-doc", "b-doc", "c-doc"}
	for i, w := range want {
		if got[i].Chunk.Identity != w {
			t.Errorf("result %d: got %s, want %s", i, got[i].Chunk.Identity, w)
		}
	}
}

// Test_MemoryStore_UpsertReplaces verifies that a second upsert for the same
// identity fully replaces the first version's chunks.
func Test_MemoryStore_UpsertReplaces(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	old := []Chunk{chunkN("doc", 0), chunkN("doc", 1), chunkN("doc", 2)}
	if err := s.Upsert(ctx, "doc", old, [][]float32{{1, 0}, {1, 0}, {1, 0}}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	replacement := []Chunk{{ID: "new", Identity: "doc", Position: 0, Fingerprint: "v2", Text: "new"}}
	if err := s.Upsert(ctx, "doc", replacement, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.Query(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk after replacement, got %d", len(got))
	}
	if got[0].Chunk.Fingerprint != "v2" {
		t.Errorf("expected the new version, got fingerprint %q", got[0].Chunk.Fingerprint)
	}
}

// Test_MemoryStore_UpsertAtomic verifies that a concurrent Query never
// observes a mix of a document's old and new chunk sets.
func Test_MemoryStore_UpsertAtomic(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	makeVersion := func(fp string, n int) ([]Chunk, [][]float32) {
		chunks := make([]Chunk, n)
		vectors := make([][]float32, n)
		for i := range chunks {
			chunks[i] = Chunk{ID: fmt.Sprintf("%s-%d", fp, i), Identity: "doc", Fingerprint: fp, Position: i}
			vectors[i] = []float32{1, 0}
		}
		return chunks, vectors
	}

	c0, v0 := makeVersion("v0", 3)
	if err := s.Upsert(ctx, "doc", c0, v0); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			c, v := makeVersion(fmt.Sprintf("v%d", i), 3)
			if err := s.Upsert(ctx, "doc", c, v); err != nil {
				t.Errorf("upsert v%d: %v", i, err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 200; i++ {
			got, err := s.Query(ctx, []float32{1, 0}, 10)
			if err != nil {
				t.Errorf("query: %v", err)
				return
			}
			seen := map[string]bool{}
			for _, sc := range got {
				seen[sc.Chunk.Fingerprint] = true
			}
			if len(seen) != 1 {
				t.Errorf("query observed mixed versions: %v", seen)
				return
			}
		}
	}()

	wg.Wait()
	<-done
}

// Test_MemoryStore_Delete verifies that deleting an identity removes its
// chunks and that deleting an unknown identity is a no-op.
func Test_MemoryStore_Delete(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "doc", []Chunk{chunkN("doc", 0)}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete(ctx, "unknown"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 chunk after unrelated delete, got %d", s.Len())
	}
	if err := s.Delete(ctx, "doc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store after delete, got %d chunks", s.Len())
	}
}

// Test_MemoryStore_DimensionMismatch verifies that embeddings with a
// different dimension than the index are rejected.
func Test_MemoryStore_DimensionMismatch(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "doc", []Chunk{chunkN("doc", 0)}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := s.Upsert(ctx, "other", []Chunk{chunkN("other", 0)}, [][]float32{{1, 0}})
	if err == nil {
		t.Fatal("expected dimension mismatch error on upsert")
	}
	if _, err := s.Query(ctx, []float32{1, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error on query")
	}
}

// Test_Cosine verifies the similarity function's range and edge cases.
func Test_Cosine(t *testing.T) {
	t.Parallel()

	if got := cosine([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors: got %f, want ~1", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: got %f, want 0", got)
	}
	if got := cosine([]float32{1, 0}, []float32{-1, 0}); got != 0 {
		t.Errorf("opposite vectors clamp to 0, got %f", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector: got %f, want 0", got)
	}
}
