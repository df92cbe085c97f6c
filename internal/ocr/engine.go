// Package ocr provides the client for the external OCR capability that
// turns page images into text. The engine itself (recognition quality,
// language models) is outside this system; this package only defines the
// boundary and an HTTP-backed implementation of it.
package ocr

import (
	"context"
	"fmt"
)

// Engine is the interface for converting a page image into plain text.
// Implementations must be safe to call from multiple goroutines.
type Engine interface {
	// Recognize extracts text from a single page image. An error means the
	// engine could not process the page at all; callers decide whether to
	// retry or record the page as failed.
	Recognize(ctx context.Context, image []byte) (string, error)
}

// EngineError reports a failure inside the OCR engine, as opposed to a
// transport or cancellation error. Retryable from the caller's perspective.
type EngineError struct {
	// Status is the HTTP status returned by the engine, 0 if not applicable.
	Status int
	// Message is the engine's own failure description.
	Message string
}

func (e *EngineError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ocr: engine failure (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ocr: engine failure: %s", e.Message)
}
