package testutils

import (
	"context"
	"fmt"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	// Dimensions sizes the default embedding returned for texts with no
	// explicit entry, so tests pair the embedder with indexes of any
	// dimensionality.
	Dimensions int

	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string
}

func NewMockEmbedder(dimensions int) *MockEmbedder {
	return &MockEmbedder{
		Dimensions: dimensions,
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Default embedding sized to the index under test.
	emb := make([]float32, m.Dimensions)
	for i := range emb {
		emb[i] = float32(i+1) / 10
	}
	return emb, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}
