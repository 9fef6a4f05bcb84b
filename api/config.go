// Package api provides the HTTP server that answers similarity queries
// over the ingested embedding index.
package api

import (
	"github.com/clipdex/clipdex/pkg/embeddings"
	"github.com/clipdex/clipdex/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Driver is the vector index this worker serves queries from.
	Driver vector.Driver

	// Embedder converts text queries into vectors. Optional: when nil,
	// only raw-vector queries are accepted.
	Embedder embeddings.Embedder
}
