package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oraculo-labs/oraculo-go/internal/answer"
	"github.com/oraculo-labs/oraculo-go/internal/ingestion"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultDrive is the drive ingested when POST /api/ingest omits drive_id.
	DefaultDrive string
}

// asker is the interface handleAsk calls to answer a question.
// *answer.Answerer satisfies it; tests inject a fake.
type asker interface {
	Ask(ctx context.Context, question string) (*answer.Record, error)
}

// ingester is the interface handleIngest calls to run an ingestion.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	Ingest(ctx context.Context, driveID string, progress func(msg string)) (*ingestion.Report, error)
}

// Server is the HTTP server that exposes the question answering and
// ingestion pipelines.
type Server struct {
	// asker answers questions over the indexed library.
	asker asker
	// ingester runs ingestion runs. May be nil when the server is started in
	// answer-only mode; POST /api/ingest then returns 501.
	ingester ingester
	// ingestBusy guards against overlapping ingestion runs.
	ingestBusy atomic.Bool
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Found is false when no indexed content was relevant enough to answer.
	Found bool `json:"found"`
	// Answer is the grounded answer text. Empty when Found is false.
	Answer string `json:"answer,omitempty"`
	// Retrieved lists every chunk that met the relevance threshold, with
	// scores, including chunks the context budget left out of the prompt.
	Retrieved []answer.Citation `json:"retrieved,omitempty"`
	// Citations lists the source chunks the answer is grounded on.
	Citations []answer.Citation `json:"citations,omitempty"`
	// Message explains why no answer was produced when Found is false.
	Message string `json:"message,omitempty"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// DriveID selects the library drive to ingest. Empty selects the
	// configured default drive.
	DriveID string `json:"drive_id"`
}
