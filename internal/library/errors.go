package library

import "errors"

// ErrUnauthorized is returned when the Graph API rejects the request with
// 401 or 403. Fetch failures of this class are not retryable for the
// affected document; batch ingestion skips it and continues.
var ErrUnauthorized = errors.New("library: unauthorized")

// ErrNotFound is returned when the requested drive, folder, or document does
// not exist (Graph 404). Not retryable for the affected document.
var ErrNotFound = errors.New("library: not found")
