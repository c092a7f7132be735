// Package qdrant provides a Qdrant-backed vector driver.
//
// Chunks are stored as points in a cosine-distance collection with the chunk
// fields carried in the point payload. Search runs Qdrant's nearest-neighbor
// query filtered on the session_id payload field; embeddings are not read
// back from the index.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/vector"
)

const (
	backendName = "qdrant"

	// DefaultCollectionName is the default collection for memory chunks.
	DefaultCollectionName = "memory_chunks"

	// DefaultPort is Qdrant's default gRPC port.
	DefaultPort = 6334
)

// Driver implements vector.Driver using Qdrant's gRPC API.
type Driver struct {
	client         *qdrant.Client
	collectionName string
	logger         *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is the Qdrant gRPC address, e.g. "localhost:6334".
	Target string

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// CollectionName is the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a Qdrant vector driver, creating the collection and its
// payload indexes if they do not exist.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, fmt.Errorf("qdrant target is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, err := splitTarget(c.Target)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant target %q: %w", c.Target, err)
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:         client,
		collectionName: collectionName,
		logger:         logger,
	}

	if err := d.ensureCollection(ctx, uint64(c.Dimensions)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ensuring collection %q: %w", collectionName, err)
	}

	logger.Info("connected to qdrant",
		zap.String("target", c.Target),
		zap.String("collection", collectionName),
		zap.Uint("dimensions", c.Dimensions),
	)

	return d, nil
}

func splitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port in the target; use the gRPC default.
		return target, DefaultPort, nil //nolint:nilerr
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	return host, port, nil
}

// ensureCollection creates the cosine collection plus the payload indexes
// needed for session filtering and ordinal-recency scrolls.
func (d *Driver) ensureCollection(ctx context.Context, dimensions uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collectionName)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		return nil
	}

	if err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	if _, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: d.collectionName,
		FieldName:      "session_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		return fmt.Errorf("indexing session_id: %w", err)
	}

	// Scrolling ordered by chunk_index requires a range-capable index.
	if _, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: d.collectionName,
		FieldName:      "chunk_index",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	}); err != nil {
		return fmt.Errorf("indexing chunk_index: %w", err)
	}

	return nil
}

// Upsert stores a chunk as a point, idempotent by chunk ID.
func (d *Driver) Upsert(ctx context.Context, chunk *vector.Chunk) error {
	payload := map[string]any{
		"session_id":    chunk.SessionID,
		"chunk_index":   int64(chunk.ChunkIndex),
		"content":       chunk.Content,
		"summary":       chunk.Summary,
		"message_count": int64(chunk.MessageCount),
		"characters":    toAnySlice(chunk.Characters),
		"keywords":      toAnySlice(chunk.Keywords),
		"importance":    chunk.Importance,
		"created_at":    chunk.CreatedAt.Format(time.RFC3339Nano),
		"genre":         chunk.Metadata.Genre,
		"emotion":       chunk.Metadata.Emotion,
		"plot_point":    chunk.Metadata.PlotPoint,
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collectionName,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", err)
	}

	d.logger.Debug("upserted chunk to qdrant",
		zap.String("chunk_id", chunk.ID),
		zap.String("session_id", chunk.SessionID),
	)

	return nil
}

// Search runs a filtered nearest-neighbor query scoped to the session.
func (d *Driver) Search(ctx context.Context, query vector.SearchQuery, embedding []float32) ([]vector.SearchResult, error) {
	q := query.Normalized()

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", q.SessionID),
			},
		},
		Limit:          qdrant.PtrOf(uint64(q.TopK)),
		ScoreThreshold: qdrant.PtrOf(q.MinSimilarity),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, vector.NewBackendError(backendName, "search", err)
	}

	results := make([]vector.SearchResult, 0, len(points))
	for _, p := range points {
		chunk := chunkFromPayload(p.GetId().GetUuid(), p.GetPayload())
		results = append(results, vector.SearchResult{Chunk: chunk, Score: p.GetScore()})
	}

	d.logger.Debug("queried qdrant",
		zap.String("session_id", q.SessionID),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Recent scrolls the session's points ordered by chunk_index descending.
func (d *Driver) Recent(ctx context.Context, sessionID string, n int) ([]*vector.Chunk, error) {
	if n <= 0 {
		return nil, nil
	}

	points, err := d.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: d.collectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", sessionID),
			},
		},
		Limit:       qdrant.PtrOf(uint32(n)),
		WithPayload: qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       "chunk_index",
			Direction: qdrant.Direction_Desc.Enum(),
		},
	})
	if err != nil {
		return nil, vector.NewBackendError(backendName, "recent", err)
	}

	chunks := make([]*vector.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, chunkFromPayload(p.GetId().GetUuid(), p.GetPayload()))
	}

	return chunks, nil
}

// Delete removes a single chunk by ID.
func (d *Driver) Delete(ctx context.Context, chunkID string) error {
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collectionName,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(chunkID)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return vector.NewBackendError(backendName, "delete", err)
	}
	return nil
}

// DeleteSession removes every point carrying the session's id.
func (d *Driver) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", sessionID),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return vector.NewBackendError(backendName, "delete_session", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// chunkFromPayload rebuilds a chunk from a point's payload. The embedding is
// intentionally left empty; Qdrant owns the vectors.
func chunkFromPayload(id string, payload map[string]*qdrant.Value) *vector.Chunk {
	chunk := &vector.Chunk{ID: id}

	if v, ok := payload["session_id"]; ok {
		chunk.SessionID = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		chunk.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["content"]; ok {
		chunk.Content = v.GetStringValue()
	}
	if v, ok := payload["summary"]; ok {
		chunk.Summary = v.GetStringValue()
	}
	if v, ok := payload["message_count"]; ok {
		chunk.MessageCount = int(v.GetIntegerValue())
	}
	if v, ok := payload["characters"]; ok {
		chunk.Characters = toStringSlice(v.GetListValue())
	}
	if v, ok := payload["keywords"]; ok {
		chunk.Keywords = toStringSlice(v.GetListValue())
	}
	if v, ok := payload["importance"]; ok {
		chunk.Importance = v.GetDoubleValue()
	}
	if v, ok := payload["created_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v.GetStringValue()); err == nil {
			chunk.CreatedAt = t
		}
	}
	if v, ok := payload["genre"]; ok {
		chunk.Metadata.Genre = v.GetStringValue()
	}
	if v, ok := payload["emotion"]; ok {
		chunk.Metadata.Emotion = v.GetStringValue()
	}
	if v, ok := payload["plot_point"]; ok {
		chunk.Metadata.PlotPoint = v.GetStringValue()
	}

	return chunk
}

func toStringSlice(list *qdrant.ListValue) []string {
	if list == nil {
		return nil
	}

	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
