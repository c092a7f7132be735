package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/llm"
	"github.com/spoolhq/spool/pkg/vector"
)

const (
	plotSummaryEmpty    = "The story has just begun."
	plotSummaryFallback = "The story is underway."
)

// Retrieve assembles the memory context for a query: the two newest chunks by
// chunk index regardless of similarity, similarity-ranked matches filling the
// remaining topK slots, a synthesized plot summary, and the active cast.
//
// Returns nil for an unknown session. Embedding or completion failures
// degrade the context (empty relevant set, placeholder summary) rather than
// failing the call; only vector-store failures propagate.
func (s *Service) Retrieve(ctx context.Context, sessionID, queryText string, topK int) (*RetrievalContext, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	recent, err := s.vector.Recent(ctx, sessionID, recentChunkCount)
	if err != nil {
		return nil, err
	}

	relevant := s.searchRelevant(ctx, sessionID, queryText, topK)

	// Recency always wins its slots; relevance fills the remainder, skipping
	// chunks already present.
	seen := make(map[string]struct{}, len(recent))
	for _, c := range recent {
		seen[c.ID] = struct{}{}
	}

	remaining := topK - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	deduped := make([]*vector.Chunk, 0, remaining)
	for _, c := range relevant {
		if len(deduped) >= remaining {
			break
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		deduped = append(deduped, c)
	}

	union := append(append([]*vector.Chunk{}, recent...), deduped...)

	return &RetrievalContext{
		RecentChunks:   recent,
		RelevantChunks: deduped,
		PlotSummary:    s.summarizePlot(ctx, session, union),
		Characters:     activeCharacters(union),
		WorldState:     session.LastSummary,
	}, nil
}

// searchRelevant embeds the query and runs the similarity search. An
// embedding failure degrades to no relevant chunks; a vector-store failure is
// logged and likewise degrades, since retrieval must never abort the caller's
// request over a missing augmentation.
func (s *Service) searchRelevant(ctx context.Context, sessionID, queryText string, topK int) []*vector.Chunk {
	embedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		s.logger.Warn("query embedding failed, skipping similarity search",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil
	}

	results, err := s.vector.Search(ctx, vector.SearchQuery{
		SessionID:     sessionID,
		TopK:          topK,
		MinSimilarity: float32(s.minSimilarity),
	}, embedding)
	if err != nil {
		s.logger.Warn("similarity search failed, degrading to recency only",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil
	}

	chunks := make([]*vector.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Chunk)
	}
	return chunks
}

// summarizePlot synthesizes the "current story state" line from the selected
// chunks' summaries, with fixed placeholders when there is nothing to
// summarize or the completion fails.
func (s *Service) summarizePlot(ctx context.Context, session *SessionInfo, chunks []*vector.Chunk) string {
	if len(chunks) == 0 {
		return plotSummaryEmpty
	}

	summaries := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Summary != "" {
			summaries = append(summaries, c.Summary)
		}
	}
	if len(summaries) == 0 {
		return plotSummaryEmpty
	}

	raw, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage("user", plotSummaryPrompt(summaries))},
		Temperature: analysisTemperature,
		MaxTokens:   plotSummaryMaxTokens,
	})
	if err != nil || strings.TrimSpace(raw) == "" {
		if err != nil {
			s.logger.Warn("plot summary completion failed, using placeholder",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
		return plotSummaryFallback
	}

	return truncateString(strings.TrimSpace(raw), plotSummaryMaxChars)
}

// activeCharacters unions the chunks' character lists in first-seen order,
// capped at maxActiveCharacters.
func activeCharacters(chunks []*vector.Chunk) []string {
	seen := make(map[string]struct{})
	characters := make([]string, 0, maxActiveCharacters)

	for _, c := range chunks {
		for _, name := range c.Characters {
			if len(characters) >= maxActiveCharacters {
				return characters
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			characters = append(characters, name)
		}
	}

	return characters
}
