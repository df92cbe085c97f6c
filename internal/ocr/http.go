package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEngine implements Engine against a Tesseract-compatible HTTP OCR
// service. It is safe for concurrent use.
type HTTPEngine struct {
	// endpoint is the OCR service base URL (e.g. "http://localhost:8884").
	endpoint string
	// language is the Tesseract language spec (e.g. "por+eng").
	language string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// HTTPConfig holds the settings for constructing an HTTPEngine.
type HTTPConfig struct {
	// Endpoint is the OCR service base URL.
	Endpoint string
	// Language is the Tesseract language spec (e.g. "por+eng").
	// Defaults to "por+eng", matching the library's document corpus.
	Language string
	// Timeout is the per-page request timeout. Defaults to 120s; OCR on a
	// dense 300-dpi page routinely takes tens of seconds.
	Timeout time.Duration
}

// NewHTTPEngine constructs an HTTPEngine from the given config.
func NewHTTPEngine(cfg *HTTPConfig) *HTTPEngine {
	language := cfg.Language
	if language == "" {
		language = "por+eng"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPEngine{
		endpoint: cfg.Endpoint,
		language: language,
		client:   &http.Client{Timeout: timeout},
	}
}

// recognizeRequest is the JSON body sent to the OCR service.
type recognizeRequest struct {
	// Image is the base64-encoded page image.
	Image string `json:"image"`
	// Language is the Tesseract language spec.
	Language string `json:"language"`
}

// recognizeResponse is the JSON body returned by the OCR service.
type recognizeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Recognize sends the page image to the OCR service and returns the
// recognized text. Engine-side failures are reported as *EngineError so
// callers can distinguish them from transport errors.
func (e *HTTPEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	body := recognizeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		Language: e.language,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ocr: marshal request: %w", err)
	}

	url := e.endpoint + "/recognize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ocr: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &EngineError{Status: resp.StatusCode, Message: msg}
	}
	if result.Error != "" {
		return "", &EngineError{Message: result.Error}
	}

	return result.Text, nil
}

// Ping verifies the OCR service is reachable. Used by the server's
// readiness probe.
func (e *HTTPEngine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("ocr: create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ocr: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Name returns the probe label for readiness responses.
func (e *HTTPEngine) Name() string { return "ocr" }
