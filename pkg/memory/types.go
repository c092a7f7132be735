package memory

import (
	"time"

	"github.com/spoolhq/spool/pkg/vector"
)

const (
	// DefaultChunkThreshold is the pending-message count at which a chunk is
	// formed regardless of what the analyzer decides.
	DefaultChunkThreshold = 8

	// recentChunkCount is how many of the newest chunks (by chunk index) are
	// always included in a retrieval context.
	recentChunkCount = 2

	// maxActiveCharacters caps the character list in a retrieval context.
	maxActiveCharacters = 10

	// originChunkImportance is assigned to the chunk formed from a session's
	// initial system message.
	originChunkImportance = 0.9

	// fallbackImportance is assigned when the analyzer degrades to its
	// deterministic rule.
	fallbackImportance = 0.5
)

// SessionInfo holds the metadata and counters for one conversational session.
// The chunk bodies themselves live in the vector store; SessionInfo carries
// only counts and rolling state.
type SessionInfo struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Genre         string    `json:"genre"`
	Tags          []string  `json:"tags"`
	Characters    []string  `json:"characters"`
	PlotOutline   string    `json:"plot_outline"`
	CurrentChunk  int       `json:"current_chunk"`
	TotalChunks   int       `json:"total_chunks"`
	TotalMessages int       `json:"total_messages"`
	TotalTokens   int       `json:"total_tokens"`
	LastSummary   string    `json:"last_summary"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateSessionRequest carries the caller-supplied fields for a new session.
type CreateSessionRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Genre       string   `json:"genre"`
	Tags        []string `json:"tags"`
	Characters  []string `json:"characters"`
	PlotOutline string   `json:"plot_outline"`

	// SystemMessage, when non-empty, seeds the session with an origin chunk
	// describing the setting before any conversation happens.
	SystemMessage string `json:"system_message"`
}

// Analysis is the analyzer's transient classification of the pending buffer.
// It is returned to the caller of AddMessage and consumed by chunk formation,
// never persisted.
type Analysis struct {
	ShouldCreateChunk bool     `json:"shouldCreateChunk"`
	Importance        float64  `json:"importance"`
	PlotPoint         string   `json:"plotPoint"`
	Emotion           string   `json:"emotion"`
	NewCharacters     []string `json:"newCharacters"`
	Keywords          []string `json:"keywords"`
}

// RetrievalContext is the assembled memory context for one query.
type RetrievalContext struct {
	RecentChunks   []*vector.Chunk `json:"recent_chunks"`
	RelevantChunks []*vector.Chunk `json:"relevant_chunks"`
	PlotSummary    string          `json:"plot_summary"`
	Characters     []string        `json:"characters"`
	WorldState     string          `json:"world_state"`
}
