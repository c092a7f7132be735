package vector_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolhq/spool/pkg/vector"
)

var _ = Describe("SearchQuery.Normalized", func() {
	It("applies defaults to a zero query", func() {
		q := vector.SearchQuery{SessionID: "s1"}.Normalized()

		Expect(q.SessionID).To(Equal("s1"))
		Expect(q.TopK).To(Equal(vector.DefaultTopK))
		Expect(q.MinSimilarity).To(BeNumerically("==", float32(vector.DefaultMinSimilarity)))
	})

	It("keeps caller-supplied values", func() {
		q := vector.SearchQuery{SessionID: "s1", TopK: 12, MinSimilarity: 0.2}.Normalized()

		Expect(q.TopK).To(Equal(12))
		Expect(q.MinSimilarity).To(BeNumerically("==", float32(0.2)))
	})

	It("replaces negative values with defaults", func() {
		q := vector.SearchQuery{TopK: -1, MinSimilarity: -0.5}.Normalized()

		Expect(q.TopK).To(Equal(vector.DefaultTopK))
		Expect(q.MinSimilarity).To(BeNumerically("==", float32(vector.DefaultMinSimilarity)))
	})
})

var _ = Describe("BackendError", func() {
	It("carries backend identity in the message", func() {
		err := vector.NewBackendError("qdrant", "upsert", errors.New("boom"))

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(Equal("qdrant upsert: boom"))
	})

	It("unwraps to the underlying error", func() {
		err := vector.NewBackendError("postgres", "search", vector.ErrConnection)

		Expect(errors.Is(err, vector.ErrConnection)).To(BeTrue())

		var backendErr *vector.BackendError
		Expect(errors.As(err, &backendErr)).To(BeTrue())
		Expect(backendErr.Backend).To(Equal("postgres"))
		Expect(backendErr.Op).To(Equal("search"))
	})

	It("returns nil for a nil error", func() {
		Expect(vector.NewBackendError("memory", "delete", nil)).To(BeNil())
	})
})
