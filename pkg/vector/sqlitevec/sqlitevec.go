// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
//
// This is the local-durable backend: chunk rows live in a plain table and the
// embeddings in a vec0 virtual table partitioned by session, with cosine as
// the distance metric so similarity is 1 - distance.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/vector"
)

const backendName = "sqlite"

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// vec0 virtual tables live on a single connection.
	db.SetMaxOpenConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// Chunk rows keyed by string chunk ID. vec0 virtual tables use integer
	// rowids, so this table's rowid doubles as the embedding rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			characters TEXT NOT NULL DEFAULT '[]',
			keywords TEXT NOT NULL DEFAULT '[]',
			importance REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating memory_chunks table: %w", err)
	}

	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS memory_chunks_session_idx ON memory_chunks (session_id, chunk_index DESC)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session index: %w", err)
	}

	// The vec0 table partitions embeddings by session so KNN queries never
	// cross session boundaries, and uses cosine distance to match the other
	// backends' similarity semantics.
	createVec := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(
			session_id text partition key,
			embedding float[%d] distance_metric=cosine
		)
	`, c.Dimensions)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert stores a chunk. Chunks are immutable, so an existing chunk ID is an
// idempotent retry and is left untouched.
func (d *Driver) Upsert(ctx context.Context, chunk *vector.Chunk) error {
	characters, err := json.Marshal(chunk.Characters)
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("marshaling characters: %w", err))
	}
	keywords, err := json.Marshal(chunk.Keywords)
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("marshaling keywords: %w", err))
	}
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("marshaling metadata: %w", err))
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM memory_chunks WHERE chunk_id = ?`, chunk.ID,
	).Scan(&existing)
	switch err {
	case nil:
		return nil
	case sql.ErrNoRows:
	default:
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("checking for existing chunk %s: %w", chunk.ID, err))
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO memory_chunks (
			chunk_id, session_id, chunk_index, content, summary,
			message_count, characters, keywords, importance, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		chunk.ID, chunk.SessionID, chunk.ChunkIndex, chunk.Content, chunk.Summary,
		chunk.MessageCount, string(characters), string(keywords), chunk.Importance,
		chunk.CreatedAt.Format(time.RFC3339Nano), string(metadata),
	)
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("inserting chunk %s: %w", chunk.ID, err))
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("getting rowid for chunk %s: %w", chunk.ID, err))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunk_embeddings(rowid, session_id, embedding) VALUES (?, ?, ?)`,
		rowID, chunk.SessionID, serializeFloat32(chunk.Embedding),
	); err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("inserting embedding for chunk %s: %w", chunk.ID, err))
	}

	if err := tx.Commit(); err != nil {
		return vector.NewBackendError(backendName, "upsert", fmt.Errorf("committing transaction: %w", err))
	}

	d.logger.Debug("upserted chunk to sqlite-vec",
		zap.String("chunk_id", chunk.ID),
		zap.String("session_id", chunk.SessionID),
	)

	return nil
}

// Search runs a KNN query within the session's partition, then joins back to
// the chunk rows. Cosine distance converts to similarity as 1 - distance.
func (d *Driver) Search(ctx context.Context, query vector.SearchQuery, embedding []float32) ([]vector.SearchResult, error) {
	q := query.Normalized()

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.chunk_id, c.session_id, c.chunk_index, c.content, c.summary,
			c.message_count, c.characters, c.keywords, c.importance,
			c.created_at, c.metadata,
			ce.distance
		FROM chunk_embeddings ce
		INNER JOIN memory_chunks c ON c.rowid = ce.rowid
		WHERE ce.session_id = ?
			AND ce.embedding MATCH ?
			AND ce.k = ?
		ORDER BY ce.distance
	`, q.SessionID, serializeFloat32(embedding), q.TopK)
	if err != nil {
		return nil, vector.NewBackendError(backendName, "search", err)
	}
	defer rows.Close()

	var results []vector.SearchResult
	for rows.Next() {
		var (
			chunk    vector.Chunk
			distance float64
		)
		if err := scanChunk(rows, &chunk, &distance); err != nil {
			return nil, vector.NewBackendError(backendName, "search", err)
		}

		similarity := float32(1.0 - distance)
		if similarity < q.MinSimilarity {
			continue
		}

		results = append(results, vector.SearchResult{Chunk: &chunk, Score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, vector.NewBackendError(backendName, "search", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.String("session_id", q.SessionID),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Recent returns up to n chunks of the session, highest chunkIndex first.
func (d *Driver) Recent(ctx context.Context, sessionID string, n int) ([]*vector.Chunk, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT
			chunk_id, session_id, chunk_index, content, summary,
			message_count, characters, keywords, importance, created_at, metadata
		FROM memory_chunks
		WHERE session_id = ?
		ORDER BY chunk_index DESC
		LIMIT ?
	`, sessionID, n)
	if err != nil {
		return nil, vector.NewBackendError(backendName, "recent", err)
	}
	defer rows.Close()

	var chunks []*vector.Chunk
	for rows.Next() {
		var chunk vector.Chunk
		if err := scanChunk(rows, &chunk, nil); err != nil {
			return nil, vector.NewBackendError(backendName, "recent", err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, vector.NewBackendError(backendName, "recent", err)
	}

	return chunks, nil
}

// Delete removes a single chunk by ID.
func (d *Driver) Delete(ctx context.Context, chunkID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return vector.NewBackendError(backendName, "delete", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM memory_chunks WHERE chunk_id = ?`, chunkID,
	).Scan(&rowID)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil
	default:
		return vector.NewBackendError(backendName, "delete", fmt.Errorf("looking up chunk %s: %w", chunkID, err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE rowid = ?`, rowID); err != nil {
		return vector.NewBackendError(backendName, "delete", fmt.Errorf("deleting embedding: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_chunks WHERE rowid = ?`, rowID); err != nil {
		return vector.NewBackendError(backendName, "delete", fmt.Errorf("deleting chunk: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return vector.NewBackendError(backendName, "delete", fmt.Errorf("committing transaction: %w", err))
	}

	return nil
}

// DeleteSession removes every chunk belonging to the session.
func (d *Driver) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT rowid FROM memory_chunks WHERE session_id = ?`, sessionID,
	)
	if err != nil {
		return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("querying rowids: %w", err))
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("scanning rowid: %w", err))
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("iterating rowids: %w", err))
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE rowid = ?`, rowID); err != nil {
			return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("deleting embedding rowid %d: %w", rowID, err))
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_chunks WHERE session_id = ?`, sessionID); err != nil {
		return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("deleting chunks: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return vector.NewBackendError(backendName, "delete_session", fmt.Errorf("committing transaction: %w", err))
	}

	d.logger.Debug("deleted session from sqlite-vec",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(rowIDs)),
	)

	return nil
}

// Close releases the database handle.
func (d *Driver) Close() error {
	return d.db.Close()
}

// scanChunk scans a chunk row in the canonical column order. When distance is
// non-nil the row carries a trailing distance column from a KNN query.
func scanChunk(rows *sql.Rows, chunk *vector.Chunk, distance *float64) error {
	var (
		characters string
		keywords   string
		metadata   string
		createdAt  string
	)

	dest := []any{
		&chunk.ID, &chunk.SessionID, &chunk.ChunkIndex, &chunk.Content,
		&chunk.Summary, &chunk.MessageCount, &characters, &keywords,
		&chunk.Importance, &createdAt, &metadata,
	}
	if distance != nil {
		dest = append(dest, distance)
	}

	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scanning chunk: %w", err)
	}

	if err := json.Unmarshal([]byte(characters), &chunk.Characters); err != nil {
		return fmt.Errorf("decoding characters: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &chunk.Keywords); err != nil {
		return fmt.Errorf("decoding keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}
	if createdAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			chunk.CreatedAt = t
		}
	}

	return nil
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)
