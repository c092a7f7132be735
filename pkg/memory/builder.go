package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/llm"
	"github.com/spoolhq/spool/pkg/vector"
)

// formChunk condenses the drained buffer into an immutable chunk and advances
// the session registry. The sequence summarize -> embed -> persist -> update
// is a unit: the registry only moves after the chunk is durably stored, so a
// persistence failure never counts a phantom chunk.
//
// The caller holds the session lock and clears the buffer on success.
func (s *Service) formChunk(ctx context.Context, session *SessionInfo, analysis *Analysis, buffer []llm.Message) error {
	transcript := llm.Transcript(buffer)
	summary := s.summarizeChunk(ctx, session, transcript)

	embedding, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("embedding chunk summary: %w", err)
	}

	chunk := &vector.Chunk{
		ID:           uuid.NewString(),
		SessionID:    session.ID,
		ChunkIndex:   session.TotalChunks,
		Content:      transcript,
		Summary:      summary,
		Embedding:    embedding,
		MessageCount: len(buffer),
		Characters:   append([]string{}, analysis.NewCharacters...),
		Keywords:     append([]string{}, analysis.Keywords...),
		Importance:   analysis.Importance,
		CreatedAt:    time.Now().UTC(),
		Metadata: vector.ChunkMetadata{
			Genre:     session.Genre,
			Emotion:   analysis.Emotion,
			PlotPoint: analysis.PlotPoint,
		},
	}

	if err := s.vector.Upsert(ctx, chunk); err != nil {
		return fmt.Errorf("persisting chunk: %w", err)
	}

	session.Characters = mergeCharacters(session.Characters, analysis.NewCharacters)
	session.TotalChunks++
	session.CurrentChunk = session.TotalChunks - 1
	session.LastSummary = summary
	session.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, session); err != nil {
		return fmt.Errorf("updating session after chunk: %w", err)
	}

	s.logger.Info("chunk formed",
		zap.String("session_id", session.ID),
		zap.String("chunk_id", chunk.ID),
		zap.Int("chunk_index", chunk.ChunkIndex),
		zap.Int("message_count", chunk.MessageCount),
		zap.Float64("importance", chunk.Importance),
	)

	return nil
}

// summarizeChunk produces the short synopsis for a transcript slice, falling
// back to a deterministic label when the completion provider fails.
func (s *Service) summarizeChunk(ctx context.Context, session *SessionInfo, transcript string) string {
	prompt := chunkSummaryPrompt(transcript, session.Genre, session.Description, session.Characters)

	raw, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage("user", prompt)},
		Temperature: analysisTemperature,
		MaxTokens:   chunkSummaryMaxTokens,
	})
	if err != nil || strings.TrimSpace(raw) == "" {
		if err != nil {
			s.logger.Warn("chunk summary completion failed, using fallback",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
		title := session.Title
		if title == "" {
			title = "Session"
		}
		return truncateString(
			fmt.Sprintf("%s - log %s", title, time.Now().UTC().Format("2006-01-02 15:04")),
			chunkSummaryMaxChars,
		)
	}

	return truncateString(strings.TrimSpace(raw), chunkSummaryMaxChars)
}

// mergeCharacters appends names not already present, preserving first-seen
// order. The cast only grows.
func mergeCharacters(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		seen[name] = struct{}{}
	}

	merged := existing
	for _, name := range incoming {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, name)
	}

	return merged
}

// truncateString limits s to max runes.
func truncateString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
