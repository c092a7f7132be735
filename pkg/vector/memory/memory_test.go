package memory_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/vector"
	"github.com/spoolhq/spool/pkg/vector/memory"
)

func chunk(id, sessionID string, index int, embedding []float32) *vector.Chunk {
	return &vector.Chunk{
		ID:         id,
		SessionID:  sessionID,
		ChunkIndex: index,
		Summary:    "summary " + id,
		Embedding:  embedding,
		Importance: 0.5,
	}
}

var _ = Describe("CosineSimilarity", func() {
	It("scores a non-zero vector against itself as 1.0", func() {
		a := []float32{0.3, -1.2, 4.5, 0.01}
		Expect(memory.CosineSimilarity(a, a)).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("scores orthogonal vectors as 0", func() {
		Expect(memory.CosineSimilarity([]float32{1, 0}, []float32{0, 1})).To(BeNumerically("~", 0.0, 1e-6))
	})

	It("scores opposite vectors as -1", func() {
		Expect(memory.CosineSimilarity([]float32{1, 2}, []float32{-1, -2})).To(BeNumerically("~", -1.0, 1e-6))
	})

	It("scores zero and mismatched vectors as 0", func() {
		Expect(memory.CosineSimilarity([]float32{0, 0}, []float32{1, 2})).To(BeZero())
		Expect(memory.CosineSimilarity([]float32{1}, []float32{1, 2})).To(BeZero())
		Expect(memory.CosineSimilarity(nil, nil)).To(BeZero())
	})
})

var _ = Describe("Driver", func() {
	var (
		ctx context.Context
		d   *memory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		d = memory.NewDriver(zap.NewNop())
	})

	Describe("Search", func() {
		BeforeEach(func() {
			// Chunks at varying angles from the query vector {1, 0}.
			Expect(d.Upsert(ctx, chunk("c0", "story-1", 0, []float32{1, 0}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("c1", "story-1", 1, []float32{0.9, 0.1}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("c2", "story-1", 2, []float32{0.5, 0.5}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("c3", "story-1", 3, []float32{0, 1}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("other", "story-2", 0, []float32{1, 0}))).To(Succeed())
		})

		It("ranks results by descending similarity", func() {
			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.1}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal("c0"))
			Expect(results[1].ID).To(Equal("c1"))
			Expect(results[2].ID).To(Equal("c2"))

			for i := 1; i < len(results); i++ {
				Expect(results[i].Score).To(BeNumerically("<=", results[i-1].Score))
			}
		})

		It("never returns results below the similarity floor", func() {
			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.95}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Score).To(BeNumerically(">=", 0.95))
			}
		})

		It("never returns more than topK results", func() {
			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "story-1", TopK: 2, MinSimilarity: 0.1}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(len(results)).To(BeNumerically("<=", 2))
		})

		It("never returns chunks from another session", func() {
			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.1}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.SessionID).To(Equal("story-1"))
			}
		})

		It("applies default topK and minSimilarity", func() {
			for i := 0; i < 10; i++ {
				c := chunk(fmt.Sprintf("extra-%d", i), "story-3", i, []float32{1, 0})
				Expect(d.Upsert(ctx, c)).To(Succeed())
			}

			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "story-3"}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(vector.DefaultTopK))
		})

		It("returns an empty result for an unknown session", func() {
			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "nope"}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Recent", func() {
		BeforeEach(func() {
			Expect(d.Upsert(ctx, chunk("c0", "story-1", 0, []float32{1, 0}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("c1", "story-1", 1, []float32{1, 0}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("c2", "story-1", 2, []float32{1, 0}))).To(Succeed())
		})

		It("returns the highest chunk indexes first", func() {
			chunks, err := d.Recent(ctx, "story-1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].ChunkIndex).To(Equal(2))
			Expect(chunks[1].ChunkIndex).To(Equal(1))
		})

		It("returns everything when n exceeds the chunk count", func() {
			chunks, err := d.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(3))
		})

		It("returns nothing for n <= 0", func() {
			chunks, err := d.Recent(ctx, "story-1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())
		})
	})

	Describe("Upsert", func() {
		It("is idempotent by chunk ID", func() {
			c := chunk("c0", "story-1", 0, []float32{1, 0})
			Expect(d.Upsert(ctx, c)).To(Succeed())
			Expect(d.Upsert(ctx, c)).To(Succeed())

			chunks, err := d.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
		})
	})

	Describe("Delete and DeleteSession", func() {
		BeforeEach(func() {
			Expect(d.Upsert(ctx, chunk("c0", "story-1", 0, []float32{1, 0}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("c1", "story-1", 1, []float32{1, 0}))).To(Succeed())
			Expect(d.Upsert(ctx, chunk("other", "story-2", 0, []float32{1, 0}))).To(Succeed())
		})

		It("deletes a single chunk", func() {
			Expect(d.Delete(ctx, "c0")).To(Succeed())

			chunks, err := d.Recent(ctx, "story-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].ID).To(Equal("c1"))
		})

		It("deletes every chunk of a session and leaves others", func() {
			Expect(d.DeleteSession(ctx, "story-1")).To(Succeed())

			results, err := d.Search(ctx, vector.SearchQuery{SessionID: "story-1", MinSimilarity: 0.1}, []float32{1, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			others, err := d.Recent(ctx, "story-2", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(others).To(HaveLen(1))
		})
	})
})
