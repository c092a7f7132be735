// Package memory provides a transient in-process vector driver.
//
// Chunks live in a map for process lifetime with no durability. Search
// computes exact cosine similarity over every chunk of the session. This is
// the reference semantics the external backends must match, and the backend
// used by tests and local development.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/vector"
)

// Driver implements vector.Driver using in-process data structures.
type Driver struct {
	logger *zap.Logger

	mu sync.RWMutex

	// chunks maps chunk ID -> chunk.
	chunks map[string]*vector.Chunk
}

// NewDriver creates an in-memory vector driver.
func NewDriver(logger *zap.Logger) *Driver {
	return &Driver{
		logger: logger,
		chunks: make(map[string]*vector.Chunk),
	}
}

// Upsert stores a chunk, idempotent by ID.
func (d *Driver) Upsert(_ context.Context, chunk *vector.Chunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chunks[chunk.ID] = chunk
	return nil
}

// Search ranks the session's chunks by cosine similarity to the embedding.
func (d *Driver) Search(_ context.Context, query vector.SearchQuery, embedding []float32) ([]vector.SearchResult, error) {
	q := query.Normalized()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var results []vector.SearchResult
	for _, chunk := range d.chunks {
		if chunk.SessionID != q.SessionID {
			continue
		}

		score := CosineSimilarity(embedding, chunk.Embedding)
		if score < q.MinSimilarity {
			continue
		}

		results = append(results, vector.SearchResult{Chunk: chunk, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > q.TopK {
		results = results[:q.TopK]
	}

	d.logger.Debug("searched in-memory chunks",
		zap.String("session_id", q.SessionID),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Recent returns up to n chunks of the session, highest chunkIndex first.
func (d *Driver) Recent(_ context.Context, sessionID string, n int) ([]*vector.Chunk, error) {
	if n <= 0 {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var chunks []*vector.Chunk
	for _, chunk := range d.chunks {
		if chunk.SessionID == sessionID {
			chunks = append(chunks, chunk)
		}
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex > chunks[j].ChunkIndex
	})

	if len(chunks) > n {
		chunks = chunks[:n]
	}

	return chunks, nil
}

// Delete removes a single chunk by ID.
func (d *Driver) Delete(_ context.Context, chunkID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.chunks, chunkID)
	return nil
}

// DeleteSession removes every chunk belonging to the session.
func (d *Driver) DeleteSession(_ context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, chunk := range d.chunks {
		if chunk.SessionID == sessionID {
			delete(d.chunks, id)
		}
	}
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// CosineSimilarity computes (a·b)/(‖a‖‖b‖). Mismatched lengths and zero
// vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
