package config

import "time"

const (
	defaultAPIListen = ":8080"

	defaultIndexDir       = "clipdex_data"
	defaultIndexProvider  = "sqlite"
	defaultDimensions     = 768
	defaultBatchSize      = 500
	defaultLockTimeout    = 5 * time.Minute
	defaultSnapshotPath   = "snapshot.jsonl"
	defaultEmbeddingProv  = "ollama"
	defaultEmbeddingTgt   = "http://localhost:11434"
	defaultEmbeddingModel = "nomic-embed-text"
	defaultEventsTopic    = "clipdex.ingest"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Index: IndexConfig{
			Dir:         defaultIndexDir,
			Provider:    defaultIndexProvider,
			Dimensions:  defaultDimensions,
			BatchSize:   defaultBatchSize,
			LockTimeout: defaultLockTimeout,
		},
		Snapshot: SnapshotConfig{
			Path: defaultSnapshotPath,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProv,
			Target:   defaultEmbeddingTgt,
			Model:    defaultEmbeddingModel,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
