// Command oraculo is the entry point for the Oraculo document QA service.
// It provides a CLI interface (via Cobra) for ingesting a document library
// and asking questions against it, plus an HTTP server mode.
package main

import (
	"fmt"
	"os"

	"github.com/oraculo-labs/oraculo-go/cmd/oraculo/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
