package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oraculo-labs/oraculo-go/internal/config"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
	"github.com/oraculo-labs/oraculo-go/internal/server"
)

// NewServeCmd constructs the `oraculo serve` command, which starts the HTTP
// server exposing the ask and ingest endpoints.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var defaultDrive string
	var memoryIndex bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Oraculo HTTP server",
		Long: `Start the Oraculo HTTP server.

Endpoints:
  POST /api/ask     Answer a question against the indexed library
  POST /api/ingest  Run an ingestion over a library drive
  GET  /api/health  Liveness probe
  GET  /api/ready   Readiness probe (checks Graph, OCR, and Qdrant)
  GET  /metrics     Prometheus metrics

Set ORACULO_API_KEY to require Bearer token authentication on /api/ask
and /api/ingest.

With --memory the server keeps the vector index in process memory instead
of Qdrant. Ingest and ask then share the same in-process index, which is
enough for single-host use; the index is lost when the server stops.

Examples:
  oraculo serve
  oraculo serve --port 9090 --drive b!x1y2z3
  oraculo serve --memory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			set := config.FromEnv()
			if host != "" {
				set.Server.Host = host
			}
			if port != 0 {
				set.Server.Port = port
			}

			emb, embCfg, err := buildEmbedder(set)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// The answerer and the pipeline share one vector store, so an
			// ingest run is immediately visible to /api/ask.
			var store rag.VectorStore
			var qdrantStore *rag.QdrantStore
			if memoryIndex {
				log.Info("using in-process memory index, contents are lost on shutdown")
				store = rag.NewMemoryStore()
			} else {
				qdrantStore, err = buildStore(ctx, set, embCfg)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				store = qdrantStore
			}
			defer func() { _ = store.Close() }()

			answerer, err := buildAnswererWith(ctx, set, emb, store, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			deps, err := buildPipelineWith(set, emb, store, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.close()

			pingers := []server.Pinger{
				deps.library,
				deps.engine,
			}
			if qdrantStore != nil {
				pingers = append(pingers, server.NewQdrantPinger(qdrantStore.Client()))
			}

			srv, err := server.New(answerer, deps.pipeline, &server.Config{
				Host:         set.Server.Host,
				Port:         set.Server.Port,
				Logger:       log,
				Pingers:      pingers,
				APIKey:       set.Server.APIKey,
				DefaultDrive: defaultDrive,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: 8080)")
	cmd.Flags().StringVarP(&defaultDrive, "drive", "d", "", "Default library drive for POST /api/ingest")
	cmd.Flags().BoolVar(&memoryIndex, "memory", false, "Keep the vector index in process memory instead of Qdrant")

	return cmd
}
