package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oraculo-labs/oraculo-go/internal/config"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
)

// NewLibrariesCmd constructs the `oraculo libraries` command, which lists
// the document drives available on the configured SharePoint site.
func NewLibrariesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the document library drives on the configured site",
		Long: `List every drive on the configured SharePoint site. The printed drive IDs
are what 'oraculo ingest --drive' expects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			set := config.FromEnv()
			lib, err := buildLibrary(set)
			if err != nil {
				return fmt.Errorf("libraries: %w", err)
			}

			drives, err := lib.ListDrives(ctx)
			if err != nil {
				return fmt.Errorf("libraries: %w", err)
			}
			if len(drives) == 0 {
				fmt.Println("no drives found on the configured site")
				return nil
			}
			for _, d := range drives {
				fmt.Printf("%s\t%s\n", d.ID, d.Name)
			}
			return nil
		},
	}
}
