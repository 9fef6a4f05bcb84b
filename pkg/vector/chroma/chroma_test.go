package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/vector/chroma"
)

func TestChroma(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chroma Driver Suite")
}

var _ = Describe("Driver", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	It("requires a server URL", func() {
		_, err := chroma.NewDriver(chroma.Config{}, logger)
		Expect(err).To(HaveOccurred())
	})

	It("creates missing collections with the cosine space", func() {
		var createBody map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet:
				http.NotFound(w, r)
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/collections"):
				json.NewDecoder(r.Body).Decode(&createBody)
				json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": chroma.DefaultCollectionName})
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		_, err := chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
		Expect(err).NotTo(HaveOccurred())

		Expect(createBody).To(HaveKeyWithValue("name", chroma.DefaultCollectionName))
		configuration, ok := createBody["configuration"].(map[string]any)
		Expect(ok).To(BeTrue())
		hnsw, ok := configuration["hnsw"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(hnsw).To(HaveKeyWithValue("space", "cosine"))
	})

	It("reuses an existing collection without creating one", func() {
		created := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode(map[string]string{"id": "col-9", "name": chroma.DefaultCollectionName})
			case http.MethodPost:
				created = true
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		_, err := chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())
	})

	It("scores query results as one minus cosine distance", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet:
				json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": chroma.DefaultCollectionName})
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/query"):
				json.NewEncoder(w).Encode(map[string]any{
					"ids":       [][]string{{"a", "b"}},
					"distances": [][]float32{{0.1, 0.5}},
					"metadatas": []any{[]any{map[string]any{"video_id": "v1"}, nil}},
				})
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		driver, err := chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
		Expect(err).NotTo(HaveOccurred())

		results, err := driver.Query(context.Background(), []float32{1, 0}, 2, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].ID).To(Equal("a"))
		Expect(results[0].Score).To(BeNumerically("~", 0.9, 1e-5))
		Expect(results[0].Metadata).To(HaveKeyWithValue("video_id", "v1"))
		Expect(results[1].Score).To(BeNumerically("~", 0.5, 1e-5))
	})
})
