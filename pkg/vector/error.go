package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when an embedding's length disagrees
	// with the index's established dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound is returned when a document is not found in the vector store.
	ErrNotFound = errors.New("document not found")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
