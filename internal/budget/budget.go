// Package budget provides token budget estimation and context packing for
// answer generation. Because the pipeline supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (prose and code). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and Portuguese prose;
	// using 3 would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the question, the instructions, and the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// PackChunks selects the prefix of chunks whose combined estimated token
// count fits within maxTokens, preserving the input order. Chunks arrive
// ranked best-first from retrieval, so truncation drops the least relevant
// ones. A chunk that alone exceeds the remaining budget is skipped rather
// than truncated mid-sentence; packing continues so smaller chunks further
// down can still fit. At least one chunk is always packed when the input is
// non-empty, so an oversized top hit cannot produce an empty context.
func PackChunks(chunks []rag.ScoredChunk, maxTokens int) []rag.ScoredChunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	var packed []rag.ScoredChunk
	used := 0
	for _, sc := range chunks {
		// Per-chunk overhead covers the citation header wrapped around the
		// chunk text in the prompt.
		cost := Estimate(sc.Chunk.Text) + 8
		if used+cost > maxTokens {
			if len(packed) == 0 {
				packed = append(packed, sc)
				break
			}
			continue
		}
		packed = append(packed, sc)
		used += cost
	}
	return packed
}
