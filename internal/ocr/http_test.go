package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestEngine starts a fake OCR service and returns an engine pointed at it.
func newTestEngine(t *testing.T, recognize http.HandlerFunc) *HTTPEngine {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/recognize", recognize)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewHTTPEngine(&HTTPConfig{Endpoint: srv.URL, Language: "por+eng"})
}

func Test_HTTPEngine_Recognize(t *testing.T) {
	t.Parallel()

	image := []byte{0x89, 0x50, 0x4e, 0x47}
	var gotReq recognizeRequest
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"recognized page text"}`)
	})

	got, err := e.Recognize(context.Background(), image)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if got != "recognized page text" {
		t.Errorf("unexpected text: %q", got)
	}
	if gotReq.Language != "por+eng" {
		t.Errorf("language not sent: %q", gotReq.Language)
	}
	if gotReq.Image != base64.StdEncoding.EncodeToString(image) {
		t.Errorf("image not base64-encoded correctly")
	}
}

// Test_HTTPEngine_EngineError verifies that a non-2xx response becomes an
// *EngineError carrying the status and the service's message.
func Test_HTTPEngine_EngineError(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"unsupported image format"}`)
	})

	_, err := e.Recognize(context.Background(), []byte{1})
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected *EngineError, got %v", err)
	}
	if engineErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", engineErr.Status)
	}
	if engineErr.Message != "unsupported image format" {
		t.Errorf("unexpected message: %q", engineErr.Message)
	}
}

// Test_HTTPEngine_ErrorInBody verifies that a 200 response with an error
// field still fails as an engine error.
func Test_HTTPEngine_ErrorInBody(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"","error":"tesseract crashed"}`)
	})

	_, err := e.Recognize(context.Background(), []byte{1})
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected *EngineError, got %v", err)
	}
	if engineErr.Status != 0 {
		t.Errorf("expected status 0 for in-body error, got %d", engineErr.Status)
	}
}

func Test_HTTPEngine_Ping(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
	if e.Name() != "ocr" {
		t.Errorf("unexpected probe name %q", e.Name())
	}
}

func Test_HTTPEngine_PingFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	e := NewHTTPEngine(&HTTPConfig{Endpoint: srv.URL})
	if err := e.Ping(context.Background()); err == nil {
		t.Error("expected ping failure for 503")
	}
}

func Test_HTTPEngine_Defaults(t *testing.T) {
	t.Parallel()

	e := NewHTTPEngine(&HTTPConfig{Endpoint: "http://localhost:8884"})
	if e.language != "por+eng" {
		t.Errorf("expected default language por+eng, got %q", e.language)
	}
	if e.client.Timeout <= 0 {
		t.Error("expected a default timeout")
	}
}
