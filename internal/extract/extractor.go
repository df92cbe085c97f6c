package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/oraculo-labs/oraculo-go/internal/library"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
	"github.com/oraculo-labs/oraculo-go/internal/ocr"
)

// ExtractedText is the full extraction result for one document. Pages are
// ordered by page number; a page that failed recognition is present as an
// empty string with a matching entry in Warnings.
type ExtractedText struct {
	Identity    string    `json:"identity"`
	Fingerprint string    `json:"fingerprint"`
	Pages       []string  `json:"pages"`
	Warnings    []string  `json:"warnings,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Text joins the page texts into a single document body. Failed pages
// contribute nothing.
func (e *ExtractedText) Text() string {
	return strings.Join(e.Pages, "\n\n")
}

// Empty reports whether extraction produced no usable text at all.
func (e *ExtractedText) Empty() bool {
	return strings.TrimSpace(e.Text()) == ""
}

// Options tunes the extractor. Zero values select the defaults.
type Options struct {
	// PageWorkers caps how many pages of one document are recognized
	// concurrently. Defaults to 4.
	PageWorkers int

	// EngineRetries is how many times a failed recognition call is retried
	// before the page is marked failed. Defaults to 3.
	EngineRetries int
}

func (o Options) withDefaults() Options {
	if o.PageWorkers <= 0 {
		o.PageWorkers = 4
	}
	if o.EngineRetries <= 0 {
		o.EngineRetries = 3
	}
	return o
}

// Extractor turns library documents into per-page text. It is a pure
// computation over the document bytes plus the OCR engine; caching sits
// above it.
type Extractor struct {
	engine ocr.Engine
	opts   Options
	logger *slog.Logger
}

// NewExtractor builds an extractor backed by the given OCR engine.
func NewExtractor(engine ocr.Engine, opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		engine: engine,
		opts:   opts.withDefaults(),
		logger: logging.WithComponent(logger, "extract"),
	}
}

// Extract produces the per-page text of a document. Pages that need OCR are
// recognized concurrently; page order in the result always follows document
// order regardless of completion order. When every page fails the whole
// document fails with ReasonEngineFailure; when only some pages fail the
// result carries empty entries for them plus one warning per failed page.
// Context cancellation aborts the remaining pages and discards the partial
// result.
func (x *Extractor) Extract(ctx context.Context, doc *library.Document) (*ExtractedText, error) {
	source, err := NewPageSource(doc)
	if err != nil {
		return nil, err
	}
	return x.extractFrom(ctx, source, doc.Identity(), doc.Fingerprint)
}

// extractFrom runs the page fan-out against an already-selected source.
func (x *Extractor) extractFrom(ctx context.Context, source PageSource, identity, fingerprint string) (*ExtractedText, error) {
	count := source.PageCount()
	if count == 0 {
		return nil, &ExtractionError{
			Reason:   ReasonUnreadable,
			Identity: identity,
			Err:      fmt.Errorf("document has no pages"),
		}
	}

	pages := make([]string, count)
	pageErrs := make([]error, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.PageWorkers)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := x.extractPage(gctx, source, i)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				pageErrs[i] = err
				return nil
			}
			pages[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: %s: %w", identity, err)
	}

	failed := 0
	var warnings []string
	for i, err := range pageErrs {
		if err == nil {
			continue
		}
		failed++
		warnings = append(warnings, fmt.Sprintf("page %d: %v", i+1, err))
		x.logger.WarnContext(ctx, "page extraction failed",
			"identity", identity, "page", i+1, "error", err)
	}
	if failed == count {
		return nil, &ExtractionError{
			Reason:   ReasonEngineFailure,
			Identity: identity,
			Err:      fmt.Errorf("all %d pages failed: %s", count, warnings[0]),
		}
	}

	return &ExtractedText{
		Identity:    identity,
		Fingerprint: fingerprint,
		Pages:       pages,
		Warnings:    warnings,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

func (x *Extractor) extractPage(ctx context.Context, source PageSource, i int) (string, error) {
	page, err := source.Page(i)
	if err != nil {
		return "", err
	}
	if page.Text != "" {
		return page.Text, nil
	}
	if len(page.Image) == 0 {
		return "", nil
	}
	return x.recognizeWithRetry(ctx, page.Image)
}

// recognizeWithRetry calls the OCR engine with exponential backoff. Engine
// 4xx responses are not retried; the input will not get better.
func (x *Extractor) recognizeWithRetry(ctx context.Context, image []byte) (string, error) {
	var text string
	op := func() error {
		var err error
		text, err = x.engine.Recognize(ctx, image)
		if err != nil {
			var engineErr *ocr.EngineError
			if errors.As(err, &engineErr) && engineErr.Status >= 400 && engineErr.Status < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(x.opts.EngineRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}
