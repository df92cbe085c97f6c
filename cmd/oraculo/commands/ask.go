package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oraculo-labs/oraculo-go/internal/answer"
	"github.com/oraculo-labs/oraculo-go/internal/config"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// NewAskCmd constructs the `oraculo ask` command, which answers a single
// question against the indexed document library and prints the answer with
// its citations.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the indexed document library",
		Long: `Ask a natural language question. The answer is generated exclusively from
documents previously indexed with 'oraculo ingest' and cites its sources.

Examples:
  oraculo ask "qual é a política de reembolso de despesas de viagem?"
  oraculo ask "what is the approval flow for new vendors?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			set := config.FromEnv()
			answerer, cleanup, err := buildAnswerer(ctx, set, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			question := strings.Join(args, " ")
			record, err := answerer.Ask(ctx, question)
			switch {
			case errors.Is(err, answer.ErrNoRelevantContent):
				fmt.Println("No relevant content was found in the document library for this question.")
				return nil
			case errors.Is(err, rag.ErrEmptyIndex):
				return fmt.Errorf("ask: the index is empty, run 'oraculo ingest' first")
			case err != nil:
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(record.Answer)
			if len(record.Citations) > 0 {
				fmt.Println("\nSources:")
				for i, c := range record.Citations {
					fmt.Printf("  [%d] %s (page %d)\n", i+1, c.Identity, c.Page)
				}
			}
			return nil
		},
	}

	return cmd
}
