// Package search provides the shared query logic for similarity search
// over the ingested embedding index. It is used by the REST API endpoint
// and is a pure read path: it never mutates the vector index and takes
// no locks, so it is isolated from any sibling process's ingestion.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/embeddings"
	"github.com/clipdex/clipdex/pkg/vector"
)

// DefaultTopK matches the original deployment's default of three results.
const DefaultTopK = 3

// MaxTopK caps a single request's result size.
const MaxTopK = 100

var (
	// ErrNotReady is returned while no completed ingestion is visible to
	// this worker. Callers should retry after backoff.
	ErrNotReady = errors.New("index is not ready")

	// ErrNoEmbedder is returned for text queries when no embedder is configured.
	ErrNoEmbedder = errors.New("text queries require an embedder")

	// ErrInvalidQuery is returned for requests that carry neither or both
	// of query text and a raw vector.
	ErrInvalidQuery = errors.New("exactly one of query text or vector is required")
)

// QueryInput represents the input arguments for a similarity query.
type QueryInput struct {
	// Query is free text routed through the external embedder.
	Query string `json:"query,omitempty"`

	// Vector is a raw query embedding, used as-is.
	Vector []float32 `json:"vector,omitempty"`

	// TopK is the maximum number of results (defaults to DefaultTopK).
	TopK int `json:"top_k,omitempty"`

	// Filter restricts results to documents whose metadata matches
	// every key/value pair exactly.
	Filter map[string]any `json:"filter,omitempty"`
}

// Result is a single ranked neighbor.
type Result struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamp is a "HH:MM:SS - HH:MM:SS" display range derived from
	// start_time/end_time metadata when present.
	Timestamp string `json:"timestamp,omitempty"`

	// Rank is the 1-based position in the ranking.
	Rank int `json:"rank"`
}

// Output is the full response for a similarity query.
type Output struct {
	Results []Result `json:"results"`
	Count   int      `json:"count"`
}

// Query runs a similarity query against the vector index. Text input is
// embedded via the configured embedder; raw vectors are used directly.
func Query(
	ctx context.Context,
	in QueryInput,
	embedder embeddings.Embedder,
	driver vector.Driver,
	logger *zap.Logger,
) (*Output, error) {
	hasText := in.Query != ""
	hasVector := len(in.Vector) > 0
	if hasText == hasVector {
		return nil, ErrInvalidQuery
	}

	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	queryVector := in.Vector
	if hasText {
		if embedder == nil {
			return nil, ErrNoEmbedder
		}
		embedded, err := embedder.Embed(ctx, in.Query)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		queryVector = embedded
	}

	logger.Debug("similarity query",
		zap.Int("top_k", topK),
		zap.Bool("text", hasText),
		zap.Int("filter_keys", len(in.Filter)),
	)

	matches, err := driver.Query(ctx, queryVector, topK, vector.Filter(in.Filter))
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for i, m := range matches {
		results = append(results, Result{
			ID:        m.ID,
			Score:     m.Score,
			Metadata:  m.Metadata,
			Timestamp: timestampRange(m.Metadata),
			Rank:      i + 1,
		})
	}

	return &Output{
		Results: results,
		Count:   len(results),
	}, nil
}
