// Package chunker splits extracted document text into overlapping chunks
// sized for embedding. Chunking is deterministic: the same extraction always
// yields the same chunks with the same IDs, which keeps vector store upserts
// idempotent across re-ingestions.
package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oraculo-labs/oraculo-go/internal/extract"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// chunkNamespace is the fixed UUID namespace for deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("8f6b3a1e-2c4d-4e8a-9f10-5b7d9c0e2a41")

// Config holds the chunking parameters.
type Config struct {
	// MaxSize is the maximum number of characters per chunk.
	// Defaults to 1000 if zero.
	MaxSize int

	// Overlap is the number of characters shared between consecutive chunks
	// of the same page. Capped at MaxSize/2. Defaults to 200 if negative.
	Overlap int
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 1000
	}
	if c.Overlap < 0 {
		c.Overlap = 200
	}
	if c.Overlap > c.MaxSize/2 {
		c.Overlap = c.MaxSize / 2
	}
	return c
}

// Chunker splits extracted text into rag.Chunk values.
type Chunker struct {
	cfg Config
}

// New constructs a Chunker with the given configuration.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults()}
}

// Split chunks every page of the extraction. Pages are chunked independently
// so each chunk carries an exact page attribution; empty or failed pages
// contribute no chunks. Positions number the chunks sequentially across the
// whole document in page order.
func (c *Chunker) Split(text *extract.ExtractedText) []rag.Chunk {
	var chunks []rag.Chunk
	position := 0
	for pageIdx, pageText := range text.Pages {
		for _, span := range c.spans(pageText) {
			chunks = append(chunks, rag.Chunk{
				ID:          chunkID(text.Identity, text.Fingerprint, position),
				Identity:    text.Identity,
				Fingerprint: text.Fingerprint,
				Page:        pageIdx + 1,
				Start:       span.start,
				End:         span.end,
				Position:    position,
				Text:        pageText[span.start:span.end],
			})
			position++
		}
	}
	return chunks
}

type span struct {
	start, end int
}

// spans computes the chunk boundaries for one page. Boundaries advance by
// MaxSize minus Overlap, so the step is always at least MaxSize/2 and the
// loop terminates. Whitespace-only pages yield no spans.
func (c *Chunker) spans(pageText string) []span {
	if strings.TrimSpace(pageText) == "" {
		return nil
	}

	var spans []span
	size := c.cfg.MaxSize
	overlap := c.cfg.Overlap

	for start := 0; start < len(pageText); start += size - overlap {
		end := start + size
		if end > len(pageText) {
			end = len(pageText)
		}
		spans = append(spans, span{start: start, end: end})
		if end == len(pageText) {
			break
		}
	}
	return spans
}

// chunkID derives a stable UUID from the chunk's identity, fingerprint, and
// position. The same document content always maps to the same point IDs, so
// re-upserting is a no-op for the vector store.
func chunkID(identity, fingerprint string, position int) string {
	name := fmt.Sprintf("%s\x00%s\x00%d", identity, fingerprint, position)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
