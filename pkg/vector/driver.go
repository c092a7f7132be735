// Package vector provides the memory chunk model and the interfaces and
// implementations for chunk storage and similarity search.
package vector

import (
	"context"
	"time"
)

const (
	// DefaultTopK is the number of results a search returns when the query
	// does not specify one.
	DefaultTopK = 5

	// DefaultMinSimilarity is the similarity floor applied when the query
	// does not specify one.
	DefaultMinSimilarity = 0.7
)

// ChunkMetadata carries the narrative annotations attached to a chunk at
// creation time.
type ChunkMetadata struct {
	Genre     string `json:"genre,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
	PlotPoint string `json:"plot_point,omitempty"`
}

// Chunk is an immutable, embedded synopsis of a contiguous slice of a
// session's conversation. Chunks are created once and never mutated; Upsert
// exists only so a failed write can be retried idempotently.
type Chunk struct {
	// ID is a unique identifier for the chunk.
	ID string `json:"id"`

	// SessionID is a lookup key into the session registry. It is a
	// back-reference only, never an ownership edge.
	SessionID string `json:"session_id"`

	// ChunkIndex is the chunk's ordinal within its session, monotonically
	// increasing from 0.
	ChunkIndex int `json:"chunk_index"`

	// Content is the raw transcript slice the chunk condenses.
	Content string `json:"content"`

	// Summary is the short synopsis the embedding is computed from.
	Summary string `json:"summary"`

	// Embedding is the vector representation of the summary.
	Embedding []float32 `json:"embedding,omitempty"`

	// MessageCount is the number of messages condensed into this chunk.
	MessageCount int `json:"message_count"`

	// Characters lists the cast members appearing in the chunk.
	Characters []string `json:"characters,omitempty"`

	// Keywords lists analyzer-extracted keywords.
	Keywords []string `json:"keywords,omitempty"`

	// Importance is the analyzer's priority signal, always in [0,1].
	Importance float64 `json:"importance"`

	CreatedAt time.Time `json:"created_at"`

	Metadata ChunkMetadata `json:"metadata"`
}

// SearchQuery scopes a similarity search to one session.
type SearchQuery struct {
	// SessionID scopes the search. Results never cross sessions.
	SessionID string

	// TopK caps the number of results. Defaults to DefaultTopK when <= 0.
	TopK int

	// MinSimilarity filters out weak matches. Defaults to
	// DefaultMinSimilarity when <= 0.
	MinSimilarity float32
}

// Normalized returns a copy of the query with defaults applied.
func (q SearchQuery) Normalized() SearchQuery {
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.MinSimilarity <= 0 {
		q.MinSimilarity = DefaultMinSimilarity
	}
	return q
}

// SearchResult pairs a chunk with its similarity score.
type SearchResult struct {
	*Chunk

	// Score is the similarity to the query embedding (higher = more similar).
	Score float32
}

// Driver handles storage and similarity search of memory chunks.
// Implementations never retry internally; failures surface to the caller
// wrapped in a *BackendError carrying the backend's identity.
type Driver interface {
	// Upsert stores a chunk, idempotent by chunk ID. Re-upserting an
	// existing ID is a retry, not a mutation.
	Upsert(ctx context.Context, chunk *Chunk) error

	// Search finds chunks of the query's session most similar to the given
	// embedding, ranked by descending similarity, truncated to TopK and
	// filtered to similarity >= MinSimilarity.
	Search(ctx context.Context, query SearchQuery, embedding []float32) ([]SearchResult, error)

	// Recent returns up to n chunks of the session with the highest
	// chunkIndex, most recent (ordinal, not wall-clock) first.
	Recent(ctx context.Context, sessionID string, n int) ([]*Chunk, error)

	// Delete removes a single chunk by ID.
	Delete(ctx context.Context, chunkID string) error

	// DeleteSession removes every chunk belonging to the session.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases any resources held by the driver.
	Close() error
}
