// Package commands defines all Cobra CLI commands for the oraculo binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/oraculo-labs/oraculo-go/internal/audit"
	"github.com/oraculo-labs/oraculo-go/internal/config"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "oraculo",
		Short: "Oraculo answers questions grounded in your document library",
		Long: `Oraculo indexes an organization's SharePoint document library (PDFs,
scanned images, plain text) and answers natural language questions using
only the indexed content, with citations back to the source documents.

Scanned documents go through an external OCR engine; extracted text is
cached so unchanged documents are never re-processed. Answers are generated
by a local (Ollama) or hosted (OpenAI) model.

Configuration comes from environment variables or a YAML config file
(~/.oraculo/config.yaml). See 'oraculo --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.oraculo/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewLibrariesCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
