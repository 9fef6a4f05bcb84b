// Package memory provides an in-memory vector driver using brute-force
// cosine search. It is the exact-ranking reference for the other drivers
// and the default store for tests and cgo-free development.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/clipdex/clipdex/pkg/vector"
)

// Driver implements vector.Driver with an exact flat scan.
type Driver struct {
	dimensions int
	docs       map[string]vector.Document
	mu         sync.RWMutex
}

// NewDriver creates an in-memory vector driver. Dimensions must be positive.
func NewDriver(dimensions int) (*Driver, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &Driver{
		dimensions: dimensions,
		docs:       make(map[string]vector.Document),
	}, nil
}

// Upsert inserts or replaces documents by ID.
func (d *Driver) Upsert(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if len(doc.Embedding) != d.dimensions {
			return fmt.Errorf("%w: doc %s has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, doc.ID, len(doc.Embedding), d.dimensions)
		}

		stored := vector.Document{
			ID:        doc.ID,
			Embedding: make([]float32, d.dimensions),
			Metadata:  make(map[string]any, len(doc.Metadata)),
		}
		copy(stored.Embedding, doc.Embedding)
		for k, v := range doc.Metadata {
			stored.Metadata[k] = v
		}
		d.docs[doc.ID] = stored
	}

	return nil
}

// Query returns the topK documents ranked by cosine similarity,
// ties broken by ascending ID.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if len(embedding) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, doc := range d.docs {
		if !filter.Matches(doc.Metadata) {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    CosineSimilarity(embedding, doc.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored documents.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs), nil
}

// Persist is a no-op: the driver holds no durable state.
func (d *Driver) Persist(_ context.Context) error {
	return nil
}

// Close releases the stored documents.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs = nil
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors score 0 rather than NaN.
func CosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
