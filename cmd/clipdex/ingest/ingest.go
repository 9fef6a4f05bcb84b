// Package ingestcmder provides the one-shot ingest command: load the
// snapshot, populate the shared index, and exit.
package ingestcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/cliui"
	"github.com/clipdex/clipdex/pkg/config"
	"github.com/clipdex/clipdex/pkg/ingest"
	"github.com/clipdex/clipdex/pkg/logger"
	"github.com/clipdex/clipdex/pkg/snapshot"
	"github.com/clipdex/clipdex/pkg/vector"
	vectorutils "github.com/clipdex/clipdex/pkg/vector/utils"
)

type IngestCommander struct {
	indexDir      string
	indexProvider string
	indexTarget   string
	dimensions    int
	batchSize     int
	snapshotPath  string
	debug         bool

	viper  *viper.Viper
	logger *zap.Logger
}

const ingestLongDesc string = `Ingest an embedding snapshot into the shared index.

Loads the snapshot artifact, acquires the ingestion lock, populates the
index, and commits the ready marker. Re-running with an already ingested
snapshot is a no-op. Useful for warming an index before workers boot.`

const ingestShortDesc string = "Ingest a snapshot into the index"

var ingestFlags = []string{
	config.FlagIndexDir,
	config.FlagIndexProvider,
	config.FlagIndexTarget,
	config.FlagDimensions,
	config.FlagBatchSize,
	config.FlagSnapshot,
}

func NewIngestCmd() *cobra.Command {
	cmder := &IngestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, ingestFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagIndexDir, &cmder.indexDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexProvider, &cmder.indexProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexTarget, &cmder.indexTarget)
	config.AddIntFlag(cmd, config.Flags, config.FlagDimensions, &cmder.dimensions)
	config.AddIntFlag(cmd, config.Flags, config.FlagBatchSize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagSnapshot, &cmder.snapshotPath)

	return cmd
}

func (c *IngestCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	cfg := config.FromViper(c.viper)
	out := os.Stdout

	var snap *snapshot.Snapshot
	err := cliui.Step(out, fmt.Sprintf("Loading snapshot %s", cfg.Snapshot.Path), func() error {
		var err error
		snap, err = snapshot.Load(cfg.Snapshot.Path)
		return err
	})
	if err != nil {
		return err
	}

	open := func(ctx context.Context, indexFile string) (vector.Driver, error) {
		return vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
			ProviderType: cfg.Index.Provider,
			Target:       cfg.Index.Target,
			Dir:          cfg.Index.Dir,
			IndexFile:    indexFile,
			Dimensions:   snap.Manifest.Dimensions,
			Logger:       c.logger,
		})
	}

	var state *ingest.IndexState
	var driver vector.Driver
	err = cliui.Step(out, fmt.Sprintf("Ingesting %d records into %s index", len(snap.Records), cfg.Index.Provider), func() error {
		coordinator, err := ingest.NewCoordinator(ingest.Config{
			Dir:         cfg.Index.Dir,
			Open:        open,
			BatchSize:   cfg.Index.BatchSize,
			LockTimeout: cfg.Index.LockTimeout,
			Logger:      c.logger,
		})
		if err != nil {
			return err
		}

		state, driver, err = coordinator.EnsureReady(ctx, snap)
		return err
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	fmt.Fprintf(out, "\nIndex ready: version %s, %d records in %s\n",
		state.Version, state.Records, cfg.Index.Dir)
	return nil
}
