// Package ingestion implements the document ingestion pipeline. It lists the
// documents of a library drive, fetches each one, extracts its text (served
// from the extraction cache when the content is unchanged), chunks and embeds
// the text, and upserts the result into the vector store. The pipeline is
// invoked by the `oraculo ingest` CLI command and by the HTTP server's
// ingest endpoint.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oraculo-labs/oraculo-go/internal/cache"
	"github.com/oraculo-labs/oraculo-go/internal/chunker"
	"github.com/oraculo-labs/oraculo-go/internal/extract"
	"github.com/oraculo-labs/oraculo-go/internal/library"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// Library is the slice of the library client the pipeline needs.
type Library interface {
	// ListDocuments returns every supported document under the drive's root,
	// recursively.
	ListDocuments(ctx context.Context, driveID string) ([]library.DocumentRef, error)
	// Fetch downloads one document's content.
	Fetch(ctx context.Context, ref library.DocumentRef) (*library.Document, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// DocWorkers caps how many documents are processed concurrently.
	// Defaults to 4 if zero.
	DocWorkers int
}

// Failure records one document that could not be ingested.
type Failure struct {
	// Identity names the document.
	Identity string `json:"identity"`
	// Reason is the human-readable failure cause.
	Reason string `json:"reason"`
}

// Report summarizes one ingestion run.
type Report struct {
	// Total is the number of supported documents found in the drive.
	Total int `json:"total"`
	// Ingested is the number of documents freshly extracted and indexed.
	Ingested int `json:"ingested"`
	// Unchanged is the number of documents served from the extraction cache.
	Unchanged int `json:"unchanged"`
	// Skipped is the number of documents that produced no indexable text.
	Skipped int `json:"skipped"`
	// Failed is the number of documents that errored.
	Failed int `json:"failed"`
	// Chunks is the total number of chunks upserted.
	Chunks int `json:"chunks"`
	// Failures lists the failed documents in the order they were observed.
	Failures []Failure `json:"failures,omitempty"`
	// Warnings carries per-page extraction warnings from partially readable
	// documents.
	Warnings []string `json:"warnings,omitempty"`
	// StartedAt and Duration frame the run.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline orchestrates the list → fetch → extract → chunk → embed → upsert
// flow for one library drive.
type Pipeline struct {
	lib       Library
	cache     cache.Store
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  rag.Embedder
	store     rag.VectorStore
	cfg       Config
	logger    *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(lib Library, cacheStore cache.Store, extractor *extract.Extractor, ch *chunker.Chunker, embedder rag.Embedder, store rag.VectorStore, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if lib == nil {
		return nil, fmt.Errorf("ingestion: library must not be nil")
	}
	if cacheStore == nil {
		return nil, fmt.Errorf("ingestion: cache must not be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("ingestion: extractor must not be nil")
	}
	if ch == nil {
		return nil, fmt.Errorf("ingestion: chunker must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg.DocWorkers <= 0 {
		cfg.DocWorkers = 4
	}
	return &Pipeline{
		lib:       lib,
		cache:     cacheStore,
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "ingestion"),
	}, nil
}

// Ingest processes every supported document in the drive. Documents run
// through a bounded worker pool; per-document failures (fetch errors,
// unreadable files, OCR failures) are recorded in the report and do not
// abort the run. An unavailable embedding backend aborts the whole run,
// since nothing after it can succeed. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, driveID string, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}

	started := time.Now().UTC()
	refs, err := p.lib.ListDocuments(ctx, driveID)
	if err != nil {
		return nil, fmt.Errorf("ingestion: list documents: %w", err)
	}
	progress(fmt.Sprintf("found %d documents in drive %s", len(refs), driveID))

	report := &Report{Total: len(refs), StartedAt: started}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.DocWorkers)
	for _, ref := range refs {
		g.Go(func() error {
			outcome, err := p.ingestOne(gctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// An unreachable embedding backend fails every remaining
				// document the same way; stop instead of burning retries.
				if errors.Is(err, rag.ErrEmbeddingUnavailable) {
					return err
				}
				report.Failed++
				report.Failures = append(report.Failures, Failure{
					Identity: ref.Identity(),
					Reason:   err.Error(),
				})
				p.logger.WarnContext(gctx, "document failed",
					"identity", ref.Identity(), "error", err)
				return nil
			}
			report.Chunks += outcome.chunks
			report.Warnings = append(report.Warnings, outcome.warnings...)
			switch {
			case outcome.skipped:
				report.Skipped++
			case outcome.cached:
				report.Unchanged++
			default:
				report.Ingested++
			}
			progress(fmt.Sprintf("indexed %s (%d chunks)", ref.Identity(), outcome.chunks))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	report.Duration = time.Since(started)
	p.logger.InfoContext(ctx, "ingestion run complete",
		"drive", driveID,
		"total", report.Total,
		"ingested", report.Ingested,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"duration", report.Duration,
	)
	return report, nil
}

type outcome struct {
	chunks   int
	cached   bool
	skipped  bool
	warnings []string
}

// ingestOne runs the full per-document flow. The extraction cache makes the
// expensive OCR step idempotent: re-ingesting an unchanged document never
// touches the OCR engine again.
func (p *Pipeline) ingestOne(ctx context.Context, ref library.DocumentRef) (*outcome, error) {
	doc, err := p.lib.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	computed := false
	extracted, err := p.cache.GetOrCompute(ctx, doc.Identity(), doc.Fingerprint,
		func(ctx context.Context) (*extract.ExtractedText, error) {
			computed = true
			return p.extractor.Extract(ctx, doc)
		})
	if err != nil {
		return nil, err
	}

	if extracted.Empty() {
		return &outcome{skipped: true, warnings: extracted.Warnings}, nil
	}

	chunks := p.chunker.Split(extracted)
	if len(chunks) == 0 {
		return &outcome{skipped: true, warnings: extracted.Warnings}, nil
	}

	meta := InferMetadata(ref.Path)
	for i := range chunks {
		chunks[i].Category = meta.Category
		chunks[i].Language = meta.Language
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if err := p.store.Upsert(ctx, doc.Identity(), chunks, embeddings); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	return &outcome{chunks: len(chunks), cached: !computed, warnings: extracted.Warnings}, nil
}
