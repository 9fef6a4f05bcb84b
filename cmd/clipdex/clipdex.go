// Package clipdexcmder
package clipdexcmder

import (
	"github.com/spf13/cobra"

	ingestcmder "github.com/clipdex/clipdex/cmd/clipdex/ingest"
	servecmder "github.com/clipdex/clipdex/cmd/clipdex/serve"
)

const clipdexLongDesc string = `Clipdex answers similarity queries over precomputed content embeddings.

Run services using:
  clipdex serve     Ingest the snapshot if needed, then run the query API
  clipdex ingest    Ingest the snapshot into the index and exit`

const clipdexShortDesc string = "Clipdex - Similarity Query Service"

func NewClipdexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clipdex",
		Short: clipdexShortDesc,
		Long:  clipdexLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: current directory)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())

	return cmd
}
