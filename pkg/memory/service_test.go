package memory_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/embeddings"
	"github.com/spoolhq/spool/pkg/llm"
	"github.com/spoolhq/spool/pkg/memory"
	"github.com/spoolhq/spool/pkg/vector"
	vecmemory "github.com/spoolhq/spool/pkg/vector/memory"
)

const neutralAnalysis = `{"importance":0.4,"shouldCreateChunk":false,"plotPoint":"development","emotion":"calm","newCharacters":[],"keywords":["river"]}`

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		completer *fakeCompleter
		embedder  *fakeEmbedder
		driver    *flakyDriver
		svc       *memory.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		completer = &fakeCompleter{
			analysisJSON: neutralAnalysis,
			chunkSummary: "Mara crosses the river",
			plotSummary:  "Mara has reached the far bank",
		}
		embedder = &fakeEmbedder{embedding: []float32{1, 0, 0, 0}}
		driver = &flakyDriver{Driver: vecmemory.NewDriver(zap.NewNop())}

		var err error
		svc, err = memory.NewService(memory.ServiceConfig{
			Store:          memory.NewMapStore(),
			Vector:         driver,
			Completer:      completer,
			Embedder:       embedder,
			ChunkThreshold: memory.DefaultChunkThreshold,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	createSession := func(req memory.CreateSessionRequest) *memory.SessionInfo {
		session, err := svc.CreateSession(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(session).NotTo(BeNil())
		return session
	}

	addMessages := func(sessionID string, n int) *memory.Analysis {
		var analysis *memory.Analysis
		for i := 0; i < n; i++ {
			role := "user"
			if i%2 == 1 {
				role = "assistant"
			}
			var err error
			analysis, err = svc.AddMessage(ctx, sessionID, llm.NewMessage(role, fmt.Sprintf("message %d", i)))
			Expect(err).NotTo(HaveOccurred())
		}
		return analysis
	}

	Describe("CreateSession", func() {
		It("creates an origin chunk from the initial system message", func() {
			session := createSession(memory.CreateSessionRequest{
				Title:         "Neon Rain",
				Genre:         "cyberpunk",
				SystemMessage: "Setting: cyberpunk city",
			})

			Expect(session.TotalChunks).To(Equal(1))
			Expect(session.CurrentChunk).To(Equal(0))
			Expect(session.LastSummary).To(HavePrefix("Story setting: "))

			chunks, err := driver.Recent(ctx, session.ID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].ChunkIndex).To(Equal(0))
			Expect(chunks[0].Importance).To(Equal(0.9))
			Expect(chunks[0].Keywords).To(ConsistOf("setting", "backstory"))
			Expect(chunks[0].Metadata.PlotPoint).To(Equal("opening"))
		})

		It("starts with no chunks when there is no system message", func() {
			session := createSession(memory.CreateSessionRequest{Title: "Bare"})
			Expect(session.TotalChunks).To(BeZero())

			chunks, err := driver.Recent(ctx, session.ID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())
		})

		It("fails creation when the origin chunk cannot be embedded", func() {
			embedder.setErr(fmt.Errorf("%w: model offline", embeddings.ErrEmbedding))

			_, err := svc.CreateSession(ctx, memory.CreateSessionRequest{
				SystemMessage: "Setting: cyberpunk city",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetSession", func() {
		It("returns nil for an unknown session", func() {
			session, err := svc.GetSession(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(session).To(BeNil())
		})

		It("returns the stored session", func() {
			created := createSession(memory.CreateSessionRequest{Title: "Neon Rain"})

			got, err := svc.GetSession(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.Title).To(Equal("Neon Rain"))
		})
	})

	Describe("AddMessage", func() {
		It("rejects an unknown session", func() {
			_, err := svc.AddMessage(ctx, "nope", llm.NewMessage("user", "hello"))
			Expect(err).To(MatchError(memory.ErrSessionNotFound))
		})

		It("always returns the analysis even when no chunk forms", func() {
			session := createSession(memory.CreateSessionRequest{})

			analysis, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "hello"))
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis).NotTo(BeNil())
			Expect(analysis.Importance).To(BeNumerically("~", 0.4, 1e-9))
		})

		It("does not form a chunk before the threshold", func() {
			session := createSession(memory.CreateSessionRequest{})
			addMessages(session.ID, memory.DefaultChunkThreshold-1)

			got, err := svc.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalChunks).To(BeZero())
			Expect(svc.PendingCount(session.ID)).To(Equal(memory.DefaultChunkThreshold - 1))
		})

		It("forms a chunk on the threshold-th message and empties the buffer", func() {
			session := createSession(memory.CreateSessionRequest{})
			addMessages(session.ID, memory.DefaultChunkThreshold)

			got, err := svc.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalChunks).To(Equal(1))
			Expect(got.CurrentChunk).To(Equal(0))
			Expect(got.LastSummary).To(Equal("Mara crosses the river"))
			Expect(svc.PendingCount(session.ID)).To(BeZero())
		})

		It("creates chunkIndex 1 and totalChunks 2 after a full buffer on a seeded session", func() {
			session := createSession(memory.CreateSessionRequest{
				SystemMessage: "Setting: cyberpunk city",
			})
			addMessages(session.ID, memory.DefaultChunkThreshold)

			got, err := svc.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalChunks).To(Equal(2))

			chunks, err := driver.Recent(ctx, session.ID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].ChunkIndex).To(Equal(1))
			Expect(chunks[1].ChunkIndex).To(Equal(0))
		})

		It("keeps chunkIndex strictly increasing across analyzer-driven cuts", func() {
			completer.analysisJSON = `{"importance":0.8,"shouldCreateChunk":true,"plotPoint":"climax","emotion":"tense","newCharacters":[],"keywords":[]}`
			session := createSession(memory.CreateSessionRequest{})

			for i := 0; i < 3; i++ {
				_, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", fmt.Sprintf("beat %d", i)))
				Expect(err).NotTo(HaveOccurred())
			}

			chunks, err := driver.Recent(ctx, session.ID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(3))
			Expect(chunks[0].ChunkIndex).To(Equal(2))
			Expect(chunks[1].ChunkIndex).To(Equal(1))
			Expect(chunks[2].ChunkIndex).To(Equal(0))
		})

		It("merges new characters into the session cast without duplicates", func() {
			completer.analysisJSON = `{"importance":0.6,"shouldCreateChunk":true,"plotPoint":"development","emotion":"calm","newCharacters":["Mara","Jex"],"keywords":[]}`
			session := createSession(memory.CreateSessionRequest{Characters: []string{"Mara"}})

			_, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "Jex arrives"))
			Expect(err).NotTo(HaveOccurred())

			got, err := svc.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Characters).To(Equal([]string{"Mara", "Jex"}))
		})

		It("clamps importance into [0,1]", func() {
			completer.analysisJSON = `{"importance":5,"shouldCreateChunk":true,"plotPoint":"climax","emotion":"tense","newCharacters":[],"keywords":[]}`
			session := createSession(memory.CreateSessionRequest{})

			analysis, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "boom"))
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis.Importance).To(Equal(1.0))

			completer.analysisJSON = `{"importance":-2,"shouldCreateChunk":true,"plotPoint":"climax","emotion":"tense","newCharacters":[],"keywords":[]}`
			analysis, err = svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "hush"))
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis.Importance).To(Equal(0.0))
		})

		It("falls back to the deterministic rule when the analyzer output is garbage", func() {
			completer.analysisJSON = "definitely not json"
			session := createSession(memory.CreateSessionRequest{})

			analysis, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "hello"))
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis.ShouldCreateChunk).To(BeFalse())
			Expect(analysis.Importance).To(Equal(0.5))

			analysis = addMessages(session.ID, memory.DefaultChunkThreshold-1)
			Expect(analysis.ShouldCreateChunk).To(BeTrue())

			got, err := svc.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalChunks).To(Equal(1))
		})

		It("accepts analyzer output wrapped in a code fence", func() {
			completer.analysisJSON = "```json\n" + `{"importance":0.7,"shouldCreateChunk":false,"plotPoint":"development","emotion":"calm","newCharacters":[],"keywords":[]}` + "\n```"
			session := createSession(memory.CreateSessionRequest{})

			analysis, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "hello"))
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis.Importance).To(BeNumerically("~", 0.7, 1e-9))
		})

		It("surfaces an upsert failure and does not advance the registry", func() {
			session := createSession(memory.CreateSessionRequest{})
			addMessages(session.ID, memory.DefaultChunkThreshold-1)

			driver.setUpsertErr(vector.NewBackendError("memory", "upsert", fmt.Errorf("disk full")))
			_, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "last straw"))
			Expect(err).To(HaveOccurred())

			var backendErr *vector.BackendError
			Expect(errors.As(err, &backendErr)).To(BeTrue())

			got, gerr := svc.GetSession(ctx, session.ID)
			Expect(gerr).NotTo(HaveOccurred())
			Expect(got.TotalChunks).To(BeZero())
			Expect(svc.PendingCount(session.ID)).To(Equal(memory.DefaultChunkThreshold))

			// The next message retries the cut once the backend recovers.
			driver.setUpsertErr(nil)
			_, err = svc.AddMessage(ctx, session.ID, llm.NewMessage("assistant", "recovered"))
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.PendingCount(session.ID)).To(BeZero())
		})

		It("defers the cut when embedding fails, without surfacing an error", func() {
			session := createSession(memory.CreateSessionRequest{})
			addMessages(session.ID, memory.DefaultChunkThreshold-1)

			embedder.setErr(fmt.Errorf("%w: model offline", embeddings.ErrEmbedding))
			analysis, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", "last straw"))
			Expect(err).NotTo(HaveOccurred())
			Expect(analysis).NotTo(BeNil())
			Expect(svc.PendingCount(session.ID)).To(Equal(memory.DefaultChunkThreshold))

			embedder.setErr(nil)
			_, err = svc.AddMessage(ctx, session.ID, llm.NewMessage("assistant", "recovered"))
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.PendingCount(session.ID)).To(BeZero())
		})
	})

	Describe("Retrieve", func() {
		It("returns nil for an unknown session", func() {
			retrieved, err := svc.Retrieve(ctx, "nope", "query", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved).To(BeNil())
		})

		It("returns placeholders for a session with no chunks", func() {
			session := createSession(memory.CreateSessionRequest{})

			retrieved, err := svc.Retrieve(ctx, session.ID, "query", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.RecentChunks).To(BeEmpty())
			Expect(retrieved.RelevantChunks).To(BeEmpty())
			Expect(retrieved.PlotSummary).To(Equal("The story has just begun."))
		})

		Context("with a populated session", func() {
			var session *memory.SessionInfo

			BeforeEach(func() {
				completer.analysisJSON = `{"importance":0.6,"shouldCreateChunk":true,"plotPoint":"development","emotion":"calm","newCharacters":["Mara"],"keywords":[]}`
				session = createSession(memory.CreateSessionRequest{Title: "Neon Rain"})
				for i := 0; i < 5; i++ {
					_, err := svc.AddMessage(ctx, session.ID, llm.NewMessage("user", fmt.Sprintf("beat %d", i)))
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("caps the context at topK, always including the two newest chunks", func() {
				retrieved, err := svc.Retrieve(ctx, session.ID, "what happened", 3)
				Expect(err).NotTo(HaveOccurred())

				Expect(retrieved.RecentChunks).To(HaveLen(2))
				Expect(retrieved.RecentChunks[0].ChunkIndex).To(Equal(4))
				Expect(retrieved.RecentChunks[1].ChunkIndex).To(Equal(3))

				Expect(len(retrieved.RelevantChunks)).To(BeNumerically("<=", 1))
				total := len(retrieved.RecentChunks) + len(retrieved.RelevantChunks)
				Expect(total).To(BeNumerically("<=", 3))
			})

			It("never repeats a recent chunk in the relevant set", func() {
				retrieved, err := svc.Retrieve(ctx, session.ID, "what happened", 5)
				Expect(err).NotTo(HaveOccurred())

				seen := map[string]struct{}{}
				for _, c := range retrieved.RecentChunks {
					seen[c.ID] = struct{}{}
				}
				for _, c := range retrieved.RelevantChunks {
					_, dup := seen[c.ID]
					Expect(dup).To(BeFalse())
				}
			})

			It("synthesizes the plot summary and carries the world state", func() {
				retrieved, err := svc.Retrieve(ctx, session.ID, "what happened", 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(retrieved.PlotSummary).To(Equal("Mara has reached the far bank"))

				got, gerr := svc.GetSession(ctx, session.ID)
				Expect(gerr).NotTo(HaveOccurred())
				Expect(retrieved.WorldState).To(Equal(got.LastSummary))
			})

			It("collects active characters in first-seen order", func() {
				retrieved, err := svc.Retrieve(ctx, session.ID, "who is here", 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(retrieved.Characters).To(ContainElement("Mara"))
				Expect(len(retrieved.Characters)).To(BeNumerically("<=", 10))
			})

			It("degrades to recency only when query embedding fails", func() {
				embedder.setErr(fmt.Errorf("%w: model offline", embeddings.ErrEmbedding))

				retrieved, err := svc.Retrieve(ctx, session.ID, "what happened", 5)
				Expect(err).NotTo(HaveOccurred())
				Expect(retrieved.RecentChunks).To(HaveLen(2))
				Expect(retrieved.RelevantChunks).To(BeEmpty())
			})

			It("degrades the plot summary to a placeholder when completion fails", func() {
				completer.err = fmt.Errorf("%w: provider down", llm.ErrCompletion)

				retrieved, err := svc.Retrieve(ctx, session.ID, "what happened", 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(retrieved.PlotSummary).To(Equal("The story is underway."))
			})
		})
	})

	Describe("DeleteSession", func() {
		It("returns false for an unknown session", func() {
			deleted, err := svc.DeleteSession(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeFalse())
		})

		It("cascades chunk deletion before removing the session", func() {
			session := createSession(memory.CreateSessionRequest{
				SystemMessage: "Setting: cyberpunk city",
			})

			deleted, err := svc.DeleteSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())

			results, err := driver.Search(ctx,
				vector.SearchQuery{SessionID: session.ID, MinSimilarity: 0.1},
				[]float32{1, 0, 0, 0},
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())

			got, err := svc.GetSession(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})
})
