package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/embeddings"
	"github.com/spoolhq/spool/pkg/llm"
	"github.com/spoolhq/spool/pkg/vector"
)

// Service is the session memory engine. It owns session metadata, the
// per-session pending buffers, and the chunk-formation pipeline, and
// delegates persistence of chunk bodies to the vector driver.
type Service struct {
	store     SessionStore
	vector    vector.Driver
	completer llm.Completer
	embedder  embeddings.Embedder
	analyzer  *Analyzer
	logger    *zap.Logger

	threshold     int
	minSimilarity float64

	// mu guards the two maps; each session's pipeline serializes on its own
	// lock so slow sessions never block unrelated ones.
	mu      sync.Mutex
	buffers map[string][]llm.Message
	locks   map[string]*sync.Mutex
}

// ServiceConfig holds the collaborators and tunables for the engine.
type ServiceConfig struct {
	Store     SessionStore
	Vector    vector.Driver
	Completer llm.Completer
	Embedder  embeddings.Embedder

	// ChunkThreshold is the buffer length at which a chunk always forms.
	// Defaults to DefaultChunkThreshold if zero.
	ChunkThreshold int

	// MinSimilarity is the similarity floor for retrieval searches. Defaults
	// to vector.DefaultMinSimilarity if zero.
	MinSimilarity float64
}

// NewService creates the memory engine.
func NewService(c ServiceConfig, logger *zap.Logger) (*Service, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if c.Vector == nil {
		return nil, fmt.Errorf("vector driver is required")
	}
	if c.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	threshold := c.ChunkThreshold
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}

	return &Service{
		store:         c.Store,
		vector:        c.Vector,
		completer:     c.Completer,
		embedder:      c.Embedder,
		analyzer:      NewAnalyzer(c.Completer, threshold, logger),
		logger:        logger,
		threshold:     threshold,
		minSimilarity: c.MinSimilarity,
		buffers:       make(map[string][]llm.Message),
		locks:         make(map[string]*sync.Mutex),
	}, nil
}

// sessionLock returns the mutex serializing one session's pipeline.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// CreateSession registers a new session with zeroed counters. When the
// request carries a system message, an origin chunk describing the setting is
// created synchronously before the session is returned; a failure there fails
// the whole creation rather than leaving a session without its setting chunk.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	now := time.Now().UTC()

	session := &SessionInfo{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Genre:        req.Genre,
		Tags:         append([]string{}, req.Tags...),
		Characters:   append([]string{}, req.Characters...),
		PlotOutline:  req.PlotOutline,
		CurrentChunk: -1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if req.SystemMessage != "" {
		embedding, err := s.embedder.Embed(ctx, req.SystemMessage)
		if err != nil {
			return nil, fmt.Errorf("embedding origin chunk: %w", err)
		}

		summary := truncateString("Story setting: "+req.SystemMessage, chunkSummaryMaxChars)
		chunk := &vector.Chunk{
			ID:           uuid.NewString(),
			SessionID:    session.ID,
			ChunkIndex:   0,
			Content:      "system: " + req.SystemMessage,
			Summary:      summary,
			Embedding:    embedding,
			MessageCount: 1,
			Characters:   append([]string{}, req.Characters...),
			Keywords:     []string{"setting", "backstory"},
			Importance:   originChunkImportance,
			CreatedAt:    now,
			Metadata: vector.ChunkMetadata{
				Genre:     req.Genre,
				Emotion:   "neutral",
				PlotPoint: "opening",
			},
		}

		if err := s.vector.Upsert(ctx, chunk); err != nil {
			return nil, fmt.Errorf("persisting origin chunk: %w", err)
		}

		session.TotalChunks = 1
		session.CurrentChunk = 0
		session.LastSummary = summary
	}

	if err := s.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("title", session.Title),
		zap.Bool("origin_chunk", req.SystemMessage != ""),
	)

	return session, nil
}

// GetSession returns the session, or nil when the ID is unknown.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	return s.store.Get(ctx, sessionID)
}

// DeleteSession removes the session, its pending buffer, and every chunk it
// owns. The chunk cascade runs first so a vector-store failure never leaves
// orphaned chunks behind a missing session.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("loading session: %w", err)
	}
	if session == nil {
		return false, nil
	}

	if err := s.vector.DeleteSession(ctx, sessionID); err != nil {
		return false, fmt.Errorf("cascading chunk deletion: %w", err)
	}

	s.mu.Lock()
	delete(s.buffers, sessionID)
	delete(s.locks, sessionID)
	s.mu.Unlock()

	deleted, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}

	s.logger.Info("session deleted", zap.String("session_id", sessionID))

	return deleted, nil
}

// AddMessage appends a message to the session's pending buffer, classifies
// the buffer, and forms a chunk when the cut policy fires: buffer length at
// or past the threshold, or the analyzer asking for a cut.
//
// The analysis is always returned, chunk or no chunk. A vector-store failure
// during formation is surfaced with the buffer intact and the registry not
// advanced; an embedding failure defers the cut to a later message instead of
// failing the ingestion.
func (s *Service) AddMessage(ctx context.Context, sessionID string, msg llm.Message) (*Analysis, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.mu.Lock()
	s.buffers[sessionID] = append(s.buffers[sessionID], msg)
	buffer := append([]llm.Message{}, s.buffers[sessionID]...)
	s.mu.Unlock()

	session.TotalMessages++
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}

	analysis := s.analyzer.Analyze(ctx, buffer, session.Genre, session.Characters)

	if len(buffer) >= s.threshold || analysis.ShouldCreateChunk {
		if err := s.formChunk(ctx, session, analysis, buffer); err != nil {
			if isEmbeddingFailure(err) {
				// The buffer is untouched; a later message retries the cut.
				s.logger.Warn("embedding failed, deferring chunk formation",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
				return analysis, nil
			}
			return analysis, err
		}

		s.mu.Lock()
		s.buffers[sessionID] = nil
		s.mu.Unlock()
	}

	return analysis, nil
}

// PendingCount reports the session's current buffer length.
func (s *Service) PendingCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers[sessionID])
}

// Close releases the engine's collaborators.
func (s *Service) Close() error {
	var firstErr error
	for _, c := range []func() error{
		s.vector.Close,
		s.completer.Close,
		s.embedder.Close,
		s.store.Close,
	} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isEmbeddingFailure(err error) bool {
	return errors.Is(err, embeddings.ErrEmbedding)
}
