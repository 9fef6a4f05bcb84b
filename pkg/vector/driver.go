// Package vector provides interfaces and implementations for durable vector
// index storage and similarity queries.
package vector

import "context"

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique, stable identifier for the document
	// (typically the transcript chunk id from the snapshot).
	ID string

	// Embedding is the vector representation of the document content.
	Embedding []float32

	// Metadata holds scalar attributes attached to the document
	// (video title, url, start/end times, ...).
	Metadata map[string]any
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity to the query vector
	// (higher = more similar).
	Score float32
}

// Filter restricts query results to documents whose metadata matches
// every key/value pair exactly. A nil or empty filter matches everything.
type Filter map[string]any

// Matches reports whether the document metadata satisfies the filter.
func (f Filter) Matches(metadata map[string]any) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

// scalarEqual compares two metadata scalars, treating all numeric types
// as float64 so that JSON-decoded values compare against native Go numbers.
func scalarEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Driver handles durable storage and retrieval of vector embeddings.
// Implementations must rank by cosine similarity and break score ties
// by ascending document ID so repeated queries are deterministic.
type Driver interface {
	// Upsert inserts documents or replaces existing entries by ID.
	// Embeddings whose length disagrees with the index's established
	// dimensionality fail with ErrDimensionMismatch.
	Upsert(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding,
	// optionally restricted by a metadata filter.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Persist durably flushes all pending mutations so that a subsequent
	// process opening the same storage observes them.
	Persist(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
