package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oraculo-labs/oraculo-go/internal/answer"
	"github.com/oraculo-labs/oraculo-go/internal/ingestion"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// fakeAsker implements the asker interface with a fixed record or error.
type fakeAsker struct {
	record *answer.Record
	err    error
}

func (f *fakeAsker) Ask(context.Context, string) (*answer.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

// fakeIngester implements the ingester interface and records the drive it
// was asked to ingest.
type fakeIngester struct {
	report    *ingestion.Report
	err       error
	gotDrive  string
	gotCalled bool
}

func (f *fakeIngester) Ingest(_ context.Context, driveID string, _ func(string)) (*ingestion.Report, error) {
	f.gotCalled = true
	f.gotDrive = driveID
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

// newTestServer builds a *Server with a fresh isolated metrics registry.
func newTestServer() *Server {
	return &Server{
		asker:   &fakeAsker{record: &answer.Record{Answer: "grounded answer"}},
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// askJSON runs handleAsk with the given body and returns the recorder.
func askJSON(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleAsk(w, req)
	return w
}

func TestHandleAsk_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{record: &answer.Record{
		Answer: "Vacations need 30 days notice [1].",
		Retrieved: []answer.Citation{
			{Identity: "d1:/policies/vacation.pdf", Page: 2, Position: 3, Score: 0.91},
			{Identity: "d1:/policies/remote.pdf", Page: 1, Position: 0, Score: 0.62},
		},
		Citations: []answer.Citation{
			{Identity: "d1:/policies/vacation.pdf", Page: 2, Position: 3, Score: 0.91},
		},
	}}

	w := askJSON(s, `{"question":"how far in advance must I request vacation?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Found {
		t.Error("expected found=true")
	}
	if resp.Answer == "" {
		t.Error("expected an answer")
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Identity != "d1:/policies/vacation.pdf" {
		t.Errorf("citations not carried through: %+v", resp.Citations)
	}
	if len(resp.Retrieved) != 2 {
		t.Errorf("retrieved references not carried through: %+v", resp.Retrieved)
	}
}

// TestHandleAsk_NotFound verifies that "nothing relevant" is a 200 with
// found=false, not an error status.
func TestHandleAsk_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{err: answer.ErrNoRelevantContent}

	w := askJSON(s, `{"question":"something off-library"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Found {
		t.Error("expected found=false")
	}
	if resp.Message == "" {
		t.Error("expected an explanatory message")
	}
	if resp.Answer != "" {
		t.Errorf("expected no answer, got %q", resp.Answer)
	}
}

// TestHandleAsk_EmptyIndex verifies that an empty index maps to 409 so
// clients can suggest running an ingestion.
func TestHandleAsk_EmptyIndex(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{err: rag.ErrEmptyIndex}

	w := askJSON(s, `{"question":"anything"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestHandleAsk_InternalError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.asker = &fakeAsker{err: errors.New("model backend exploded")}

	w := askJSON(s, `{"question":"anything"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "exploded") {
		t.Error("internal error details must not leak to the client")
	}
}

func TestHandleAsk_InvalidJSON(t *testing.T) {
	t.Parallel()

	w := askJSON(newTestServer(), `not-json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	t.Parallel()

	w := askJSON(newTestServer(), `{"question":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// ingestJSON runs handleIngest with the given body and returns the recorder.
func ingestJSON(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleIngest(w, req)
	return w
}

func TestHandleIngest_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngester{report: &ingestion.Report{Total: 3, Ingested: 2, Unchanged: 1, Chunks: 40}}
	s.ingester = ing

	w := ingestJSON(s, `{"drive_id":"drive-a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if ing.gotDrive != "drive-a" {
		t.Errorf("wrong drive ingested: %q", ing.gotDrive)
	}

	var report ingestion.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Ingested != 2 || report.Chunks != 40 {
		t.Errorf("report not returned: %+v", report)
	}
}

// TestHandleIngest_DefaultDrive verifies that an omitted drive_id falls back
// to the configured default.
func TestHandleIngest_DefaultDrive(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.DefaultDrive = "drive-default"
	ing := &fakeIngester{report: &ingestion.Report{}}
	s.ingester = ing

	w := ingestJSON(s, `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ing.gotDrive != "drive-default" {
		t.Errorf("expected the default drive, got %q", ing.gotDrive)
	}
}

func TestHandleIngest_MissingDrive(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingester = &fakeIngester{report: &ingestion.Report{}}

	w := ingestJSON(s, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no drive is configured, got %d", w.Code)
	}
}

// TestHandleIngest_NotConfigured verifies answer-only mode returns 501.
func TestHandleIngest_NotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingester = nil

	w := ingestJSON(s, `{"drive_id":"drive-a"}`)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

// TestHandleIngest_Busy verifies that overlapping runs are rejected with 409.
func TestHandleIngest_Busy(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngester{report: &ingestion.Report{}}
	s.ingester = ing
	s.ingestBusy.Store(true)

	w := ingestJSON(s, `{"drive_id":"drive-a"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a run is active, got %d", w.Code)
	}
	if ing.gotCalled {
		t.Error("ingester must not run while another run is active")
	}
}

func TestHandleIngest_Error(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingester = &fakeIngester{err: errors.New("drive unreachable")}

	w := ingestJSON(s, `{"drive_id":"drive-a"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	// The busy flag must be released after a failed run.
	if s.ingestBusy.Load() {
		t.Error("busy flag still set after run finished")
	}
}

func TestNew_RequiresAsker(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, &Config{}); err == nil {
		t.Fatal("expected error for nil asker")
	}
}

// TestNew_Defaults verifies config defaulting and that the rate limiter's
// background goroutine can be stopped.
func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeAsker{record: &answer.Record{}}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.stopRL()

	if s.cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", s.cfg.Port)
	}
	if s.cfg.Host != "127.0.0.1" {
		t.Errorf("expected default host, got %q", s.cfg.Host)
	}
	if s.httpServer.WriteTimeout <= s.httpServer.ReadTimeout {
		t.Error("write timeout must cover a synchronous ingestion run")
	}
}
