// Package servecmder provides the serve command: ensure the shared index
// is ingested, then run the query API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/clipdex/clipdex/api"
	"github.com/clipdex/clipdex/pkg/config"
	"github.com/clipdex/clipdex/pkg/embeddings"
	embeddingutils "github.com/clipdex/clipdex/pkg/embeddings/utils"
	"github.com/clipdex/clipdex/pkg/eventstream"
	"github.com/clipdex/clipdex/pkg/eventstream/kafka"
	"github.com/clipdex/clipdex/pkg/eventstream/nop"
	"github.com/clipdex/clipdex/pkg/ingest"
	"github.com/clipdex/clipdex/pkg/logger"
	"github.com/clipdex/clipdex/pkg/snapshot"
	"github.com/clipdex/clipdex/pkg/vector"
	vectorutils "github.com/clipdex/clipdex/pkg/vector/utils"
)

type ServeCommander struct {
	listen        string
	indexDir      string
	indexProvider string
	indexTarget   string
	dimensions    int
	batchSize     int
	snapshotPath  string
	embeddingProv string
	embeddingTgt  string
	embeddingMdl  string
	debug         bool

	viper  *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the clipdex query API server.

On startup the worker loads the configured embedding snapshot and ensures
the shared index directory holds a completed ingestion for it. Exactly one
worker per directory ingests; the rest wait, then serve. The server answers
503 until its index is ready.`

const serveShortDesc string = "Run the query API server"

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagIndexDir,
	config.FlagIndexProvider,
	config.FlagIndexTarget,
	config.FlagDimensions,
	config.FlagBatchSize,
	config.FlagSnapshot,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingMdl,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %v", err)
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexDir, &cmder.indexDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexProvider, &cmder.indexProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndexTarget, &cmder.indexTarget)
	config.AddIntFlag(cmd, config.Flags, config.FlagDimensions, &cmder.dimensions)
	config.AddIntFlag(cmd, config.Flags, config.FlagBatchSize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagSnapshot, &cmder.snapshotPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingMdl, &cmder.embeddingMdl)

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	cfg := config.FromViper(c.viper)

	snap, err := snapshot.Load(cfg.Snapshot.Path)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	c.logger.Info("loaded snapshot",
		zap.String("path", cfg.Snapshot.Path),
		zap.String("version", snap.Manifest.Version),
		zap.Int("records", len(snap.Records)),
	)

	// The manifest is authoritative for dimensionality.
	if cfg.Index.Dimensions != 0 && cfg.Index.Dimensions != snap.Manifest.Dimensions {
		c.logger.Warn("configured dimensions disagree with snapshot manifest, using manifest",
			zap.Int("configured", cfg.Index.Dimensions),
			zap.Int("manifest", snap.Manifest.Dimensions),
		)
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

	publisher, err := c.createPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	coordinator, err := ingest.NewCoordinator(ingest.Config{
		Dir:         cfg.Index.Dir,
		Open:        open,
		BatchSize:   cfg.Index.BatchSize,
		LockTimeout: cfg.Index.LockTimeout,
		Publisher:   publisher,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	state, driver, err := coordinator.EnsureReady(ctx, snap)
	if err != nil {
		return fmt.Errorf("ensuring index ready: %w", err)
	}
	defer driver.Close()

	embedder, err := c.createEmbedder(cfg)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Driver:     driver,
		Embedder:   embedder,
	}, c.logger)
	apiServer.MarkReady(state)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	case <-ctx.Done():
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	if len(cfg.Events.Brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing ingest events",
		zap.Strings("brokers", cfg.Events.Brokers),
		zap.String("topic", cfg.Events.Topic),
	)
	return publisher, nil
}

func (c *ServeCommander) createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	if cfg.Embedding.Provider == "" {
		c.logger.Info("no embedding provider configured, text queries disabled")
		return nil, nil
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}
