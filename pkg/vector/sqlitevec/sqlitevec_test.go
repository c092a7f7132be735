package sqlitevec_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/vector"
	"github.com/spoolhq/spool/pkg/vector/sqlitevec"
)

func chunk(id, sessionID string, index int, embedding []float32) *vector.Chunk {
	return &vector.Chunk{
		ID:           id,
		SessionID:    sessionID,
		ChunkIndex:   index,
		Content:      "content " + id,
		Summary:      "summary " + id,
		Embedding:    embedding,
		MessageCount: 8,
		Characters:   []string{"Mara"},
		Keywords:     []string{"river"},
		Importance:   0.5,
		CreatedAt:    time.Now().UTC(),
		Metadata:     vector.ChunkMetadata{PlotPoint: "development", Emotion: "neutral"},
	}
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlitevec.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 4,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	Describe("NewDriver", func() {
		It("errors when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{Dimensions: 4}, zap.NewNop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("errors when dimensions are not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Upsert", func() {
		It("stores a chunk and returns it from Recent", func() {
			Expect(driver.Upsert(ctx, chunk("c0", "story-1", 0, []float32{0.1, 0.2, 0.3, 0.4}))).To(Succeed())

			chunks, err := driver.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].ID).To(Equal("c0"))
			Expect(chunks[0].Summary).To(Equal("summary c0"))
			Expect(chunks[0].Characters).To(Equal([]string{"Mara"}))
			Expect(chunks[0].Metadata.PlotPoint).To(Equal("development"))
		})

		It("treats a duplicate chunk ID as an idempotent retry", func() {
			c := chunk("c0", "story-1", 0, []float32{0.1, 0.2, 0.3, 0.4})
			Expect(driver.Upsert(ctx, c)).To(Succeed())
			Expect(driver.Upsert(ctx, c)).To(Succeed())

			chunks, err := driver.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, chunk("c0", "story-1", 0, []float32{1, 0, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("c1", "story-1", 1, []float32{0.9, 0.1, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("c2", "story-1", 2, []float32{0, 1, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("other", "story-2", 0, []float32{1, 0, 0, 0}))).To(Succeed())
		})

		It("ranks results by descending similarity", func() {
			results, err := driver.Search(ctx,
				vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.1},
				[]float32{1, 0, 0, 0},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].ID).To(Equal("c0"))
			for i := 1; i < len(results); i++ {
				Expect(results[i].Score).To(BeNumerically("<=", results[i-1].Score))
			}
		})

		It("never returns chunks from another session", func() {
			results, err := driver.Search(ctx,
				vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.1},
				[]float32{1, 0, 0, 0},
			)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.SessionID).To(Equal("story-1"))
			}
		})

		It("filters results below the similarity floor", func() {
			results, err := driver.Search(ctx,
				vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.95},
				[]float32{1, 0, 0, 0},
			)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Score).To(BeNumerically(">=", 0.95))
			}
		})

		It("respects the topK limit", func() {
			results, err := driver.Search(ctx,
				vector.SearchQuery{SessionID: "story-1", TopK: 1, MinSimilarity: 0.1},
				[]float32{1, 0, 0, 0},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(results)).To(BeNumerically("<=", 1))
		})
	})

	Describe("Recent", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, chunk("c0", "story-1", 0, []float32{1, 0, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("c1", "story-1", 1, []float32{0, 1, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("c2", "story-1", 2, []float32{0, 0, 1, 0}))).To(Succeed())
		})

		It("returns the highest chunk indexes first", func() {
			chunks, err := driver.Recent(ctx, "story-1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].ChunkIndex).To(Equal(2))
			Expect(chunks[1].ChunkIndex).To(Equal(1))
		})

		It("returns nothing for n <= 0", func() {
			chunks, err := driver.Recent(ctx, "story-1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())
		})
	})

	Describe("Delete and DeleteSession", func() {
		BeforeEach(func() {
			Expect(driver.Upsert(ctx, chunk("c0", "story-1", 0, []float32{1, 0, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("c1", "story-1", 1, []float32{0, 1, 0, 0}))).To(Succeed())
			Expect(driver.Upsert(ctx, chunk("other", "story-2", 0, []float32{1, 0, 0, 0}))).To(Succeed())
		})

		It("deletes a single chunk", func() {
			Expect(driver.Delete(ctx, "c0")).To(Succeed())

			chunks, err := driver.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].ID).To(Equal("c1"))
		})

		It("does not error when deleting a non-existent chunk", func() {
			Expect(driver.Delete(ctx, "nonexistent")).To(Succeed())
		})

		It("deletes every chunk of a session and leaves others", func() {
			Expect(driver.DeleteSession(ctx, "story-1")).To(Succeed())

			chunks, err := driver.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())

			results, err := driver.Search(ctx,
				vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.1},
				[]float32{1, 0, 0, 0},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			others, err := driver.Recent(ctx, "story-2", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(others).To(HaveLen(1))
		})
	})
})
