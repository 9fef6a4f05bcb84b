package sqlitevec_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/vector"
	"github.com/clipdex/clipdex/pkg/vector/sqlitevec"
)

func TestSQLiteVec(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SQLiteVec Driver Suite")
}

var _ = Describe("Driver", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should create a driver with an in-memory database", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(driver.Close()).To(Succeed())
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath: ":memory:",
			}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*sqlitevec.Driver)(nil)
		})
	})

	Describe("Upsert and Query", func() {
		var (
			driver *sqlitevec.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			var err error
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 2,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			ctx = context.Background()
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given empty docs", func() {
			Expect(driver.Upsert(ctx, []vector.Document{})).To(Succeed())
		})

		It("should reject documents with the wrong dimensionality", func() {
			err := driver.Upsert(ctx, []vector.Document{
				{ID: "bad", Embedding: []float32{1, 0, 0}},
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("should rank by similarity with ties broken by doc id", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"video_id": "v1"}},
				{ID: "b", Embedding: []float32{0, 1}, Metadata: map[string]any{"video_id": "v2"}},
				{ID: "c", Embedding: []float32{0.9, 0.1}, Metadata: map[string]any{"video_id": "v2"}},
			})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0}, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[1].ID).To(Equal("c"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})

		It("should replace a document on repeated upsert", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				{ID: "doc", Embedding: []float32{1, 0}},
			})).To(Succeed())
			Expect(driver.Upsert(ctx, []vector.Document{
				{ID: "doc", Embedding: []float32{0, 1}},
			})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			results, err := driver.Query(ctx, []float32{0, 1}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-5))
		})

		It("should apply metadata filters", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]any{"video_id": "v1"}},
				{ID: "b", Embedding: []float32{0.9, 0.1}, Metadata: map[string]any{"video_id": "v2"}},
			})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0}, 2, vector.Filter{"video_id": "v2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("b"))
		})

		It("should find matches ranked far from the query under a selective filter", func() {
			// Many near neighbors fail the filter; the only match sits well
			// beyond the initial overfetch window and must still be found.
			docs := make([]vector.Document, 0, 21)
			for i := 0; i < 20; i++ {
				docs = append(docs, vector.Document{
					ID:        fmt.Sprintf("near-%02d", i),
					Embedding: []float32{1, float32(i) / 100},
					Metadata:  map[string]any{"video_id": "other"},
				})
			}
			docs = append(docs, vector.Document{
				ID:        "far-match",
				Embedding: []float32{0, 1},
				Metadata:  map[string]any{"video_id": "wanted"},
			})
			Expect(driver.Upsert(ctx, docs)).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0}, 1, vector.Filter{"video_id": "wanted"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("far-match"))
		})

		It("should reject queries with the wrong dimensionality", func() {
			_, err := driver.Query(ctx, []float32{1, 0, 0}, 1, nil)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("should round-trip metadata", func() {
			Expect(driver.Upsert(ctx, []vector.Document{
				{
					ID:        "chunk-1",
					Embedding: []float32{1, 0},
					Metadata: map[string]any{
						"video_title": "Intro to Sorting",
						"start_time":  float64(30),
						"end_time":    float64(45),
					},
				},
			})).To(Succeed())

			results, err := driver.Query(ctx, []float32{1, 0}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Metadata).To(HaveKeyWithValue("video_title", "Intro to Sorting"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("start_time", float64(30)))
		})
	})

	Describe("Persist", func() {
		It("should make writes visible to a fresh driver on the same file", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "index.db")
			ctx := context.Background()

			writer, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     dbPath,
				Dimensions: 2,
			}, logger)
			Expect(err).NotTo(HaveOccurred())

			Expect(writer.Upsert(ctx, []vector.Document{
				{ID: "a", Embedding: []float32{1, 0}},
			})).To(Succeed())
			Expect(writer.Persist(ctx)).To(Succeed())
			Expect(writer.Close()).To(Succeed())

			reader, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     dbPath,
				Dimensions: 2,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer reader.Close()

			count, err := reader.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})
})
