// Package sqlitestore provides a SQLite-backed session store so session
// metadata survives process restarts.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/memory"
)

// Store implements memory.SessionStore on a SQLite database file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the sessions database at dbPath.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			characters TEXT NOT NULL DEFAULT '[]',
			plot_outline TEXT NOT NULL DEFAULT '',
			current_chunk INTEGER NOT NULL DEFAULT -1,
			total_chunks INTEGER NOT NULL DEFAULT 0,
			total_messages INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			last_summary TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}

	logger.Info("sqlite session store initialized", zap.String("db_path", dbPath))

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Put(ctx context.Context, session *memory.SessionInfo) error {
	tags, err := json.Marshal(session.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	characters, err := json.Marshal(session.Characters)
	if err != nil {
		return fmt.Errorf("marshaling characters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, title, description, genre, tags, characters, plot_outline,
			current_chunk, total_chunks, total_messages, total_tokens,
			last_summary, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			genre = excluded.genre,
			tags = excluded.tags,
			characters = excluded.characters,
			plot_outline = excluded.plot_outline,
			current_chunk = excluded.current_chunk,
			total_chunks = excluded.total_chunks,
			total_messages = excluded.total_messages,
			total_tokens = excluded.total_tokens,
			last_summary = excluded.last_summary,
			updated_at = excluded.updated_at
	`,
		session.ID, session.Title, session.Description, session.Genre,
		string(tags), string(characters), session.PlotOutline,
		session.CurrentChunk, session.TotalChunks, session.TotalMessages,
		session.TotalTokens, session.LastSummary,
		session.CreatedAt.Format(time.RFC3339Nano),
		session.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storing session %s: %w", session.ID, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*memory.SessionInfo, error) {
	var (
		session    memory.SessionInfo
		tags       string
		characters string
		createdAt  string
		updatedAt  string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, genre, tags, characters, plot_outline,
			current_chunk, total_chunks, total_messages, total_tokens,
			last_summary, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(
		&session.ID, &session.Title, &session.Description, &session.Genre,
		&tags, &characters, &session.PlotOutline,
		&session.CurrentChunk, &session.TotalChunks, &session.TotalMessages,
		&session.TotalTokens, &session.LastSummary, &createdAt, &updatedAt,
	)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(tags), &session.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if err := json.Unmarshal([]byte(characters), &session.Characters); err != nil {
		return nil, fmt.Errorf("decoding characters: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		session.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		session.UpdatedAt = t
	}

	return &session, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking deletion of %s: %w", id, err)
	}

	return affected > 0, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ensure Store implements memory.SessionStore
var _ memory.SessionStore = (*Store)(nil)
