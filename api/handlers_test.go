package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clipdex/clipdex/pkg/ingest"
	clipdexlogger "github.com/clipdex/clipdex/pkg/logger"
	testutils "github.com/clipdex/clipdex/pkg/utils/test"
	"github.com/clipdex/clipdex/pkg/vector"
	"github.com/clipdex/clipdex/pkg/vector/memory"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

func postQuery(server *Server, body string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

var _ = Describe("Server", func() {
	var (
		server   *Server
		driver   *memory.Driver
		embedder *testutils.MockEmbedder
	)

	readyState := &ingest.IndexState{
		Version:    "2026-08-01",
		Checksum:   "abc123",
		IndexFile:  "index-abc123.db",
		Records:    3,
		IngestedAt: time.Now().UTC(),
	}

	BeforeEach(func() {
		var err error
		driver, err = memory.NewDriver(2)
		Expect(err).NotTo(HaveOccurred())
		embedder = testutils.NewMockEmbedder(2)

		Expect(driver.Upsert(context.Background(), []vector.Document{
			{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"video_id": "v1"}},
			{ID: "b", Embedding: []float32{0, 1}, Metadata: map[string]any{"video_id": "v2"}},
			{ID: "c", Embedding: []float32{0.9, 0.1}, Metadata: map[string]any{"video_id": "v2"}},
		})).To(Succeed())

		server = NewServer(Config{
			ListenAddr: ":0",
			Driver:     driver,
			Embedder:   embedder,
		}, clipdexlogger.Nop())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("GET /api/health", func() {
		It("returns 503 before the index is ready", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/health", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("initializing"))
		})

		It("reports the served snapshot once ready", func() {
			server.MarkReady(readyState)

			req, err := http.NewRequest(http.MethodGet, "/api/health", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var health healthResponse
			Expect(json.NewDecoder(resp.Body).Decode(&health)).To(Succeed())
			Expect(health.Status).To(Equal("healthy"))
			Expect(health.Version).To(Equal("2026-08-01"))
			Expect(health.Records).To(Equal(3))
		})
	})

	Describe("POST /api/query", func() {
		Context("before the index is ready", func() {
			It("returns 503", func() {
				resp := postQuery(server, `{"vector":[1,0]}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			})
		})

		Context("once ready", func() {
			BeforeEach(func() {
				server.MarkReady(readyState)
			})

			It("returns ranked results for a raw vector", func() {
				resp := postQuery(server, `{"vector":[1,0],"top_k":2}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var out queryResponse
				Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
				Expect(out.Status).To(Equal("success"))
				Expect(out.Count).To(Equal(2))
				Expect(out.Results[0].ID).To(Equal("a"))
				Expect(out.Results[1].ID).To(Equal("c"))
			})

			It("embeds text queries", func() {
				embedder.Embeddings["sorting"] = []float32{1, 0}

				resp := postQuery(server, `{"query":"sorting","top_k":1}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var out queryResponse
				Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
				Expect(out.Results[0].ID).To(Equal("a"))
			})

			It("applies metadata filters", func() {
				resp := postQuery(server, `{"vector":[1,0],"top_k":3,"filter":{"video_id":"v2"}}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var out queryResponse
				Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
				Expect(out.Count).To(Equal(2))
				Expect(out.Results[0].ID).To(Equal("c"))
			})

			It("returns 400 for a non-JSON body", func() {
				resp := postQuery(server, `not json`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("returns 400 when both query and vector are present", func() {
				resp := postQuery(server, `{"query":"hi","vector":[1,0]}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("returns 400 when neither query nor vector is present", func() {
				resp := postQuery(server, `{"top_k":2}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("returns 400 for negative top_k", func() {
				resp := postQuery(server, `{"vector":[1,0],"top_k":-1}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("top_k must be a positive integer"))
			})

			It("returns 400 for a query vector with the wrong dimensionality", func() {
				resp := postQuery(server, `{"vector":[1,0,0]}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("returns 503 for text queries without an embedder", func() {
				noEmbed := NewServer(Config{
					ListenAddr: ":0",
					Driver:     driver,
				}, clipdexlogger.Nop())
				noEmbed.MarkReady(readyState)

				resp := postQuery(noEmbed, `{"query":"hi"}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			})

			It("returns 500 without leaking internal errors", func() {
				mock := testutils.NewMockVectorDriver()
				mock.FailQuery = true
				failing := NewServer(Config{
					ListenAddr: ":0",
					Driver:     mock,
				}, clipdexlogger.Nop())
				failing.MarkReady(readyState)

				resp := postQuery(failing, `{"vector":[1,0]}`)
				Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("internal error"))
				Expect(string(body)).NotTo(ContainSubstring("mock query failure"))
			})
		})
	})
})
