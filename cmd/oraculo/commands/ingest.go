package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oraculo-labs/oraculo-go/internal/config"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
)

// NewIngestCmd constructs the `oraculo ingest` command, which runs the
// document ingestion pipeline against one library drive.
func NewIngestCmd() *cobra.Command {
	var driveID string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a document library drive into the vector store",
		Long: `Walk a SharePoint library drive, extract text from every supported
document (PDF, scanned image, plain text), and index the chunks into the
Qdrant vector store.

Extraction results are cached by content fingerprint, so re-running ingest
only processes documents that changed since the last run.

Required environment variables:
  GRAPH_TENANT_ID      Entra ID tenant for the app registration
  GRAPH_CLIENT_ID      App registration client ID
  GRAPH_CLIENT_SECRET  App registration client secret
  GRAPH_SITE_ID        SharePoint site whose drives hold the documents
  OCR_ENDPOINT         OCR engine base URL (e.g. http://localhost:8884)
  QDRANT_HOST          Qdrant server hostname (default: localhost)

Use 'oraculo libraries' to discover drive IDs.

Examples:
  oraculo ingest --drive b!x1y2z3
  CHUNK_SIZE=1500 oraculo ingest --drive b!x1y2z3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if driveID == "" {
				return fmt.Errorf("ingest: --drive is required (list drives with 'oraculo libraries')")
			}

			set := config.FromEnv()
			deps, err := buildPipeline(ctx, set, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer deps.close()

			report, err := deps.pipeline.Ingest(ctx, driveID, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingest finished",
				slog.Int("total", report.Total),
				slog.Int("ingested", report.Ingested),
				slog.Int("unchanged", report.Unchanged),
				slog.Int("skipped", report.Skipped),
				slog.Int("failed", report.Failed),
				slog.Int("chunks", report.Chunks),
				slog.Duration("duration", report.Duration),
			)
			for _, f := range report.Failures {
				log.Warn("document not indexed",
					slog.String("identity", f.Identity),
					slog.String("reason", f.Reason),
				)
			}
			stats := deps.cache.Stats()
			log.Info("extraction cache",
				slog.Int64("hits", stats.Hits),
				slog.Int64("misses", stats.Misses),
				slog.Int64("computations", stats.Computations),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&driveID, "drive", "d", "", "Library drive ID to ingest")

	return cmd
}
