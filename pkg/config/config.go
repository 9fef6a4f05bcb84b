// Package config holds the clipdex configuration surface: one Config
// struct, defaults in a single place, and viper wiring for the
// flag > env > config file > default precedence chain.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the full clipdex configuration.
type Config struct {
	API       APIConfig
	Index     IndexConfig
	Snapshot  SnapshotConfig
	Embedding EmbeddingConfig
	Events    EventsConfig
}

// APIConfig configures the HTTP query server.
type APIConfig struct {
	// Listen is the address the API server binds (e.g. ":8080").
	Listen string
}

// IndexConfig configures the shared vector index.
type IndexConfig struct {
	// Dir is the durable index directory shared by all workers. Holds the
	// driver's on-disk files, the ready marker, and the ingestion lock.
	Dir string

	// Provider selects the vector driver: sqlite, memory, chroma, postgres.
	Provider string

	// Target is provider-specific: chroma URL or postgres connection
	// string. For sqlite the database file lives inside Dir.
	Target string

	// Dimensions is the embedding dimensionality of the index.
	Dimensions int

	// BatchSize bounds ingestion upsert batches.
	BatchSize int

	// LockTimeout bounds how long a booting worker waits on a sibling's
	// ingestion before failing startup.
	LockTimeout time.Duration
}

// SnapshotConfig configures the embedding snapshot artifact.
type SnapshotConfig struct {
	// Path is the snapshot artifact file.
	Path string
}

// EmbeddingConfig configures the external text embedder.
type EmbeddingConfig struct {
	// Provider selects the embedder ("ollama"), empty disables text queries.
	Provider string

	// Target is the embedder endpoint URL.
	Target string

	// Model is the embedding model name.
	Model string
}

// EventsConfig configures the optional ingestion event stream.
type EventsConfig struct {
	// Brokers is the Kafka bootstrap broker list; empty disables publishing.
	Brokers []string

	// Topic is the Kafka topic for ingest events.
	Topic string
}

// FromViper materializes a Config from the resolved viper state.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Index: IndexConfig{
			Dir:         v.GetString("index.dir"),
			Provider:    v.GetString("index.provider"),
			Target:      v.GetString("index.target"),
			Dimensions:  v.GetInt("index.dimensions"),
			BatchSize:   v.GetInt("index.batch_size"),
			LockTimeout: v.GetDuration("index.lock_timeout"),
		},
		Snapshot: SnapshotConfig{
			Path: v.GetString("snapshot.path"),
		},
		Embedding: EmbeddingConfig{
			Provider: v.GetString("embedding.provider"),
			Target:   v.GetString("embedding.target"),
			Model:    v.GetString("embedding.model"),
		},
		Events: EventsConfig{
			Brokers: v.GetStringSlice("events.brokers"),
			Topic:   v.GetString("events.topic"),
		},
	}
}
