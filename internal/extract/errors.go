package extract

import "fmt"

// Reason classifies why a document could not be extracted at all.
type Reason string

const (
	// ReasonUnreadable means the document bytes could not be parsed as the
	// format its extension claims (corrupt file, truncated download).
	ReasonUnreadable Reason = "unreadable"

	// ReasonUnsupportedFormat means the file type has no page source variant.
	ReasonUnsupportedFormat Reason = "unsupported_format"

	// ReasonEngineFailure means the OCR engine failed on every page, leaving
	// nothing usable.
	ReasonEngineFailure Reason = "engine_failure"
)

// ExtractionError reports a whole-document extraction failure. Single-page
// failures never produce an ExtractionError; they yield an empty page entry
// and a warning on the result instead.
type ExtractionError struct {
	// Reason classifies the failure.
	Reason Reason
	// Identity is the library identity of the affected document.
	Identity string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %s: %v", e.Identity, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract: %s: %s", e.Identity, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
